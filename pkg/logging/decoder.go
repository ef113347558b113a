package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type decoder struct {
	writer io.Writer
}

// NewDecoder returns an io.Writer that takes single JSON log events and writes them to the given writer
// in the human readable form.
func NewDecoder(writer io.Writer) io.Writer {
	return &decoder{writer: writer}
}

func (d *decoder) Write(p []byte) (int, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(p, &event); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(d.writer, decode(event)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// decode renders time, level and service first, then the remaining fields sorted by name, then the event.
func decode(event map[string]interface{}) string {
	if event[Event] == Genesis {
		return fmt.Sprintln("Beginning of time at", event[Genesis])
	}
	var b strings.Builder
	if val, ok := event[Time]; ok {
		fmt.Fprintf(&b, "%6v|", val)
	}
	if val, ok := event[Level].(string); ok {
		if i, err := strconv.Atoi(val); err == nil {
			fmt.Fprintf(&b, "%5v|", zerolog.Level(i))
		}
	}
	if val, ok := event[Service].(float64); ok {
		fmt.Fprintf(&b, "%s:%8v|", fieldNameDict[Service], serviceTypeDict[int(val)])
	}
	keys := make([]string, 0, len(event))
	for k := range event {
		switch k {
		case Time, Level, Service, Event:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if f, ok := fieldNameDict[k]; ok {
			name = f
		}
		fmt.Fprintf(&b, "%8s = %-6v|", name, event[k])
	}
	if val, ok := event[Event].(string); ok {
		if s, in := eventTypeDict[val]; in {
			val = s
		}
		b.WriteString("  " + val)
	}
	b.WriteByte('\n')
	return b.String()
}
