package wpaconf

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Field is one key=value line of a network block, value as written.
type Field struct {
	Key   string
	Value string
}

// Block is a network={...} section. Field order is preserved.
type Block struct {
	Fields []Field
}

// Get returns the raw value of key.
func (b *Block) Get(key string) (string, bool) {
	for _, f := range b.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key or appends it.
func (b *Block) Set(key, value string) {
	for i, f := range b.Fields {
		if f.Key == key {
			b.Fields[i].Value = value
			return
		}
	}
	b.Fields = append(b.Fields, Field{Key: key, Value: value})
}

// SSID returns the decoded network name.
func (b *Block) SSID() string {
	v, _ := b.Get("ssid")
	return DecodeSSID(v)
}

// Priority returns the block priority, 0 when unset.
func (b *Block) Priority() int {
	v, ok := b.Get("priority")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

// Disabled reports whether wpa_supplicant will skip the block.
func (b *Block) Disabled() bool {
	v, _ := b.Get("disabled")
	return v == "1"
}

func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("network={\n")
	for _, f := range b.Fields {
		if f.Key == "" {
			fmt.Fprintf(&sb, "\t%s\n", f.Value)
			continue
		}
		fmt.Fprintf(&sb, "\t%s=%s\n", f.Key, f.Value)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// File is a parsed wpa_supplicant configuration: global lines followed by
// network blocks.
type File struct {
	Header []string
	Blocks []*Block
}

// NewFile returns an empty configuration with the standard global section.
func NewFile(country string) *File {
	h := []string{
		"ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev",
		"update_config=1",
	}
	if country != "" {
		h = append(h, "country="+country)
	}
	return &File{Header: h}
}

// Parse reads a configuration. Global lines found between blocks are moved
// to the header; comments inside blocks are kept.
func Parse(data string) (*File, error) {
	f := &File{}
	var cur *Block

	sc := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		if cur == nil {
			switch {
			case line == "":
			case strings.HasPrefix(line, "network={"):
				cur = &Block{}
			default:
				f.Header = append(f.Header, line)
			}
			continue
		}

		switch {
		case line == "}":
			f.Blocks = append(f.Blocks, cur)
			cur = nil
		case line == "":
		case strings.HasPrefix(line, "#"):
			cur.Fields = append(cur.Fields, Field{Value: line})
		default:
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: expected key=value inside network block", lineNo)
			}
			cur.Fields = append(cur.Fields, Field{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("unterminated network block")
	}
	return f, nil
}

func (f *File) String() string {
	var sb strings.Builder
	for _, h := range f.Header {
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	for _, b := range f.Blocks {
		sb.WriteByte('\n')
		sb.WriteString(b.String())
	}
	return sb.String()
}

// MaxPriority returns the highest priority among the blocks.
func (f *File) MaxPriority() int {
	highest := 0
	for _, b := range f.Blocks {
		if p := b.Priority(); p > highest {
			highest = p
		}
	}
	return highest
}

// RemoveSSID drops every block for ssid and reports how many were removed.
func (f *File) RemoveSSID(ssid string) int {
	kept := f.Blocks[:0]
	removed := 0
	for _, b := range f.Blocks {
		if b.SSID() == ssid {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	f.Blocks = kept
	return removed
}
