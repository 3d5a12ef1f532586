package resource

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vk/artiflow/internal/table"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// CSVCodec encodes *table.Table values as CSV with a header row.
type CSVCodec struct{}

// Name implements Codec.
func (CSVCodec) Name() string { return "csv" }

// Encode implements Codec.
func (CSVCodec) Encode(w io.Writer, data any) error {
	t, err := AsTable(data)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "" {
			// csv.Writer renders a lone empty field as a blank line, which
			// csv.Reader skips.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode implements Codec. The first record is the header.
func (CSVCodec) Decode(r io.Reader) (any, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	t := table.New(records[0]...)
	t.Rows = records[1:]
	return t, nil
}

// MsgpackCodec encodes arbitrary values with msgpack. When New is set,
// Decode unmarshals into the value it returns (which must be a pointer);
// otherwise into a generic interface value.
type MsgpackCodec struct {
	New func() any
}

// Name implements Codec.
func (MsgpackCodec) Name() string { return "msgpack" }

// Encode implements Codec.
func (MsgpackCodec) Encode(w io.Writer, data any) error {
	return msgpack.NewEncoder(w).Encode(data)
}

// Decode implements Codec.
func (c MsgpackCodec) Decode(r io.Reader) (any, error) {
	dec := msgpack.NewDecoder(r)
	if c.New != nil {
		target := c.New()
		if err := dec.Decode(target); err != nil {
			return nil, err
		}
		return target, nil
	}
	return dec.DecodeInterface()
}

// YAMLCodec encodes values as a single YAML document. New behaves as in
// MsgpackCodec.
type YAMLCodec struct {
	New func() any
}

// Name implements Codec.
func (YAMLCodec) Name() string { return "yaml" }

// Encode implements Codec.
func (YAMLCodec) Encode(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// Decode implements Codec.
func (c YAMLCodec) Decode(r io.Reader) (any, error) {
	dec := yaml.NewDecoder(r)
	if c.New != nil {
		target := c.New()
		if err := dec.Decode(target); err != nil {
			return nil, err
		}
		return target, nil
	}
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// JSONCodec encodes values as a single JSON document. New behaves as in
// MsgpackCodec.
type JSONCodec struct {
	New func() any
}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// Encode implements Codec.
func (JSONCodec) Encode(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Decode implements Codec.
func (c JSONCodec) Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	if c.New != nil {
		target := c.New()
		if err := dec.Decode(target); err != nil {
			return nil, err
		}
		return target, nil
	}
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "csv":
		return CSVCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	case "yaml":
		return YAMLCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q: must be one of csv, msgpack, yaml, json", name)
	}
}
