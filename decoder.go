package gokusto

import (
	"encoding/json"
	"fmt"
	"io"
)

// frameSource yields frames in arrival order. Next returns io.EOF when the
// stream is exhausted. Order is load-bearing: fragments and completions
// reference earlier headers by table id.
type frameSource interface {
	Next() (Frame, error)
}

// frameDecoder decodes a v2 response, a single JSON array of frame objects,
// lazily element by element so materialization can start before the whole
// body arrives.
type frameDecoder struct {
	dec     *json.Decoder
	started bool
	done    bool
}

func newFrameDecoder(r io.Reader) *frameDecoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &frameDecoder{dec: dec}
}

func (d *frameDecoder) Next() (Frame, error) {
	if d.done {
		return nil, io.EOF
	}
	if !d.started {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, &KustoError{
				Number:  ErrCodeMalformedResponse,
				Message: "response is not a v2 frame array: %v", MessageArgs: []interface{}{err},
			}
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return nil, &KustoError{
				Number:  ErrCodeMalformedResponse,
				Message: "response is not a v2 frame array, leading token %v", MessageArgs: []interface{}{tok},
			}
		}
		d.started = true
	}
	if !d.dec.More() {
		d.done = true
		if _, err := d.dec.Token(); err != nil {
			return nil, &KustoError{
				Number:  ErrCodeMalformedResponse,
				Message: "frame array not terminated: %v", MessageArgs: []interface{}{err},
			}
		}
		return nil, io.EOF
	}
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		d.done = true
		return nil, &KustoError{
			Number:  ErrCodeMalformedFrame,
			Message: "malformed frame element: %v", MessageArgs: []interface{}{err},
		}
	}
	frame, err := decodeFrame(raw)
	if err != nil {
		d.done = true
		return nil, err
	}
	return frame, nil
}

// decodeFrame decodes one frame object by its FrameType discriminator. An
// element carrying the OData error shape instead of a FrameType is a
// legitimate part of the stream and decodes to a QueryError frame.
func decodeFrame(raw json.RawMessage) (Frame, error) {
	var probe struct {
		FrameType string              `json:"FrameType"`
		Error     *oneAPIErrorMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &KustoError{
			Number:  ErrCodeMalformedFrame,
			Message: "malformed frame element: %v", MessageArgs: []interface{}{err},
		}
	}

	var f Frame
	switch probe.FrameType {
	case frameTypeDataSetHeader:
		f = &DataSetHeader{}
	case frameTypeTableHeader:
		f = &TableHeader{}
	case frameTypeTableFragment:
		f = &TableFragment{}
	case frameTypeTableProgress:
		f = &TableProgress{}
	case frameTypeTableCompletion:
		f = &TableCompletion{}
	case frameTypeTableProperties:
		f = &TableProperties{}
	case frameTypeDataTable:
		f = &DataTable{}
	case frameTypeDataSetCompletion:
		f = &DataSetCompletion{}
	case "":
		if probe.Error != nil {
			return probe.Error.toQueryError(), nil
		}
		return nil, &KustoError{
			Number:  ErrCodeUnknownFrameKind,
			Message: "frame element carries no FrameType",
		}
	default:
		return nil, &KustoError{
			Number:  ErrCodeUnknownFrameKind,
			Message: "unknown frame kind %q", MessageArgs: []interface{}{probe.FrameType},
		}
	}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, &KustoError{
			Number:  ErrCodeMalformedFrame,
			Message: "malformed %s frame: %v", MessageArgs: []interface{}{probe.FrameType, err},
		}
	}
	return f, nil
}

// sliceFrameSource serves a pre-built frame sequence, used for normalized v1
// responses and in tests.
type sliceFrameSource struct {
	frames []Frame
	pos    int
}

func (s *sliceFrameSource) Next() (Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// v1Response is the legacy single-document response shape.
type v1Response struct {
	Tables     []v1Table `json:"Tables"`
	Table      *v1Table  `json:"Table,omitempty"`
	Exceptions []string  `json:"Exceptions,omitempty"`
}

type v1Table struct {
	TableName string            `json:"TableName,omitempty"`
	Columns   []Column          `json:"Columns"`
	Rows      []json.RawMessage `json:"Rows"`
}

// decodeV1Response reads a v1 document and normalizes it into the same frame
// set the v2 decoder yields, so materialization has a single code path. Each
// v1 table collapses header, rows and completion into one DataTable frame.
func decodeV1Response(r io.Reader) (frameSource, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var resp v1Response
	if err := dec.Decode(&resp); err != nil {
		return nil, &KustoError{
			Number:  ErrCodeMalformedResponse,
			Message: "response is not a v1 document: %v", MessageArgs: []interface{}{err},
		}
	}
	tables := resp.Tables
	if len(tables) == 0 && resp.Table != nil {
		tables = []v1Table{*resp.Table}
	}

	frames := make([]Frame, 0, len(tables)+len(resp.Exceptions)+1)
	for i, t := range tables {
		name := t.TableName
		if name == "" {
			name = fmt.Sprintf("Table_%d", i)
		}
		frames = append(frames, &DataTable{
			TableID:   i,
			TableName: name,
			TableKind: v1TableKind(i, len(tables)),
			Columns:   t.Columns,
			Rows:      t.Rows,
		})
	}
	for _, e := range resp.Exceptions {
		frames = append(frames, &QueryError{Message: e})
	}
	frames = append(frames, &DataSetCompletion{HasErrors: len(resp.Exceptions) > 0})
	return &sliceFrameSource{frames: frames}, nil
}

// v1TableKind guesses the role of a v1 table from its position: the first
// table carries the query output, and when several tables are present the
// last one is the table of contents describing the rest.
func v1TableKind(idx, total int) string {
	switch {
	case idx == 0:
		return TableKindPrimaryResult
	case idx == total-1 && total > 1:
		return TableKindTableOfContents
	default:
		return TableKindUnknown
	}
}
