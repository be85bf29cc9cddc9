package remote

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cordage-pm/cordage/pkg/object"
)

// EncodePackTransport encodes a sequence of manifest/version-list payloads
// into a pack stream. Entry order is preserved and is the only way a decoder
// can match responses back to requests: the transport does not carry keys.
func EncodePackTransport(w io.Writer, payloads [][]byte) error {
	pw, err := object.NewPackWriter(w, uint32(len(payloads)))
	if err != nil {
		return fmt.Errorf("create pack writer: %w", err)
	}
	for i, data := range payloads {
		if err := pw.WriteEntry(object.PackBlob, data); err != nil {
			return fmt.Errorf("write pack entry %d: %w", i, err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		return fmt.Errorf("finish pack: %w", err)
	}
	return nil
}

// DecodePackTransport decodes a pack stream back into its ordered payloads.
func DecodePackTransport(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	pf, err := object.ReadPack(data)
	if err != nil {
		return nil, fmt.Errorf("read pack: %w", err)
	}
	out := make([][]byte, 0, len(pf.Entries))
	for _, e := range pf.Entries {
		if e.Type != object.PackBlob {
			return nil, fmt.Errorf("unsupported pack entry type %d", e.Type)
		}
		out = append(out, e.Data)
	}
	return out, nil
}

// EncodePackTransportToBytes is a convenience wrapper.
func EncodePackTransportToBytes(payloads [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePackTransport(&buf, payloads); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
