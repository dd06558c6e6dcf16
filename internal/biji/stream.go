package biji

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Frame types emitted by the /knowledge/search/stream endpoint.
const (
	msgTypeAnswer   = 1   // a chunk of the AI answer
	msgTypeDone     = 3   // stream complete
	msgTypeThinking = 21  // a chunk of the deep-think transcript
	msgTypeRefs     = 105 // the cited references
)

// streamDataPrefix marks payload lines in the event stream.
const streamDataPrefix = "data: "

// maxStreamLine bounds a single stream line; reference frames can be large.
const maxStreamLine = 1 << 20

// streamFrame is one decoded event from the search stream.
type streamFrame struct {
	MsgType int         `json:"msg_type"`
	Content string      `json:"content"`
	Refs    []Reference `json:"refs"`
}

// readSearchStream consumes the event stream of a search call and assembles
// the final result. Lines that are not data frames or fail to decode are
// skipped; the stream ends at the done frame or EOF.
func (c *Client) readSearchStream(body io.Reader) (*SearchResult, error) {
	var (
		answer     strings.Builder
		thinking   strings.Builder
		references []Reference
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(line[len(streamDataPrefix):]), &frame); err != nil {
			continue
		}

		switch frame.MsgType {
		case msgTypeAnswer:
			answer.WriteString(frame.Content)
		case msgTypeThinking:
			thinking.WriteString(frame.Content)
		case msgTypeRefs:
			references = append(references, frame.Refs...)
			if c.debug {
				c.logger.Debug("references received", "count", len(frame.Refs))
			}
		case msgTypeDone:
			return &SearchResult{
				Answer:     answer.String(),
				References: references,
				Thinking:   thinking.String(),
			}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, classifyTransportError(err)
	}

	// Stream ended without a done frame; return what arrived.
	return &SearchResult{
		Answer:     answer.String(),
		References: references,
		Thinking:   thinking.String(),
	}, nil
}
