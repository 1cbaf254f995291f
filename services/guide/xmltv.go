package guide

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"nexuspvr/models"
)

// FeedResult is the outcome of one pass over an XMLTV document. Programs
// carry the feed's channel string in ChannelExt and are resolved to channel
// ids by the caller; Dropped counts programmes rejected at ingestion.
type FeedResult struct {
	Programs     []models.Program
	DisplayNames map[string]string // feed channel id -> display name
	Dropped      int
}

type xmltvChannel struct {
	ID          string      `xml:"id,attr"`
	DisplayName []xmltvText `xml:"display-name"`
}

type xmltvProgramme struct {
	Start    string      `xml:"start,attr"`
	Stop     string      `xml:"stop,attr"`
	Channel  string      `xml:"channel,attr"`
	Title    []xmltvText `xml:"title"`
	SubTitle []xmltvText `xml:"sub-title"`
	Desc     []xmltvText `xml:"desc"`
	Category []xmltvText `xml:"category"`
}

type xmltvText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// IngestXMLTV consumes a streamed XMLTV document in a single forward pass,
// emitting the programme sequence and the document's channel-id to
// display-name table. The reader is consumed once; the pass is not
// restartable. A programme needs channel, start and stop attributes and a
// non-empty title; anything with a malformed date or stop <= start is
// dropped, not an error.
func IngestXMLTV(r io.Reader) (*FeedResult, error) {
	res := &FeedResult{DisplayNames: make(map[string]string)}

	decoder := xml.NewDecoder(r)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xmltv: %w", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "channel":
			var ch xmltvChannel
			if err := decoder.DecodeElement(&ch, &se); err != nil {
				continue
			}
			if ch.ID == "" {
				continue
			}
			if name := firstText(ch.DisplayName); name != "" {
				res.DisplayNames[ch.ID] = name
			}

		case "programme":
			var prog xmltvProgramme
			if err := decoder.DecodeElement(&prog, &se); err != nil {
				res.Dropped++
				continue
			}
			p, ok := buildProgram(prog)
			if !ok {
				res.Dropped++
				continue
			}
			res.Programs = append(res.Programs, p)
		}
	}

	return res, nil
}

func buildProgram(prog xmltvProgramme) (models.Program, bool) {
	title := firstText(prog.Title)
	if prog.Channel == "" || prog.Start == "" || prog.Stop == "" || title == "" {
		return models.Program{}, false
	}

	start, err := parseXMLTVTime(prog.Start)
	if err != nil {
		return models.Program{}, false
	}
	stop, err := parseXMLTVTime(prog.Stop)
	if err != nil {
		return models.Program{}, false
	}
	if !stop.After(start) {
		return models.Program{}, false
	}

	p := models.Program{
		ID:          models.ProgramID(prog.Channel, start.Unix(), stop.Unix()),
		Name:        title,
		Subtitle:    firstText(prog.SubTitle),
		Description: firstText(prog.Desc),
		Start:       start.Unix(),
		End:         stop.Unix(),
		ChannelExt:  prog.Channel,
	}
	for _, cat := range prog.Category {
		if v := strings.TrimSpace(cat.Value); v != "" {
			p.Genres = append(p.Genres, v)
		}
	}
	return p, true
}

func firstText(values []xmltvText) string {
	for _, v := range values {
		if s := strings.TrimSpace(v.Value); s != "" {
			return s
		}
	}
	return ""
}

// xmltvTimeRegex matches YYYYMMDDHHMMSS with an optional UTC offset.
var xmltvTimeRegex = regexp.MustCompile(`^(\d{14})(?:\s*([+-]\d{4}))?$`)

// parseXMLTVTime parses the XMLTV time format. The offset defaults to UTC
// when absent; otherwise it is applied as a fixed zone.
func parseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	matches := xmltvTimeRegex.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid xmltv time: %q", s)
	}

	dateStr := matches[1]
	tzStr := matches[2]

	loc := time.UTC
	if tzStr != "" {
		sign := 1
		if tzStr[0] == '-' {
			sign = -1
		}
		var hours, minutes int
		fmt.Sscanf(tzStr[1:], "%02d%02d", &hours, &minutes)
		loc = time.FixedZone(tzStr, sign*(hours*3600+minutes*60))
	}

	t, err := time.ParseInLocation("20060102150405", dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
