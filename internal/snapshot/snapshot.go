// Package snapshot converts flowcharts to and from their stored forms.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/softtagz-sys/medikits-flowchart/internal/dotgraph"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

var ErrUnknownFormat = errors.New("unknown snapshot format")

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgPack Format = "msgpack"
	FormatDOT     Format = "dot"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatMsgPack, FormatDOT:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "gv":
		return FormatDOT, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

type Codec interface {
	Encode(g *flowchart.Graph) ([]byte, error)
	Decode(data []byte) (*flowchart.Graph, error)
	Name() string
}

func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatYAML:
		return YAMLCodec{}, nil
	case FormatMsgPack:
		return MsgPackCodec{}, nil
	case FormatDOT:
		return dotgraph.NewCodec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func Marshal(g *flowchart.Graph, f Format) ([]byte, error) {
	c, err := CodecFor(f)
	if err != nil {
		return nil, err
	}
	data, err := c.Encode(g)
	if err != nil {
		return nil, fmt.Errorf("%s encoding failed: %w", c.Name(), err)
	}
	return data, nil
}

func Unmarshal(data []byte, f Format) (*flowchart.Graph, error) {
	c, err := CodecFor(f)
	if err != nil {
		return nil, err
	}
	g, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s decoding failed: %w", c.Name(), err)
	}
	return g, nil
}

func Write(w io.Writer, g *flowchart.Graph, f Format) error {
	data, err := Marshal(g, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func Read(r io.Reader, f Format) (*flowchart.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, f)
}

type JSONCodec struct{}

func (JSONCodec) Encode(g *flowchart.Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

func (JSONCodec) Decode(data []byte) (*flowchart.Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var g flowchart.Graph
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (JSONCodec) Name() string { return "json" }

type YAMLCodec struct{}

func (YAMLCodec) Encode(g *flowchart.Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(g); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Decode(data []byte) (*flowchart.Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var g flowchart.Graph
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (YAMLCodec) Name() string { return "yaml" }

// MsgPackCodec reuses the json field names so every format shares one key
// set.
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(g *flowchart.Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPackCodec) Decode(data []byte) (*flowchart.Graph, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(true)
	var g flowchart.Graph
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (MsgPackCodec) Name() string { return "msgpack" }
