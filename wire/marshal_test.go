//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package wire

import (
	"bytes"
	"errors"
	"testing"
)

type marshalTest struct {
	U8   uint8
	U16  uint16
	U32  uint32
	U64  uint64
	Data []byte
}

func TestMarshalValues(t *testing.T) {
	data := &marshalTest{
		U8:   0x88,
		U16:  0x1616,
		U32:  0x32323232,
		U64:  0x6464646464646464,
		Data: []byte("Hello, world!"),
	}

	var buf [1024]byte

	n, err := MarshalTo(buf[:], &data)
	if err != nil {
		t.Fatal(err)
	}
	const marshalledSize = 1 + 2 + 4 + 8 + 4 + 13
	if n != marshalledSize {
		t.Errorf("marshalled %v, expected %v", n, marshalledSize)
	}

	var data2 marshalTest

	n2, err := UnmarshalFrom(buf[:n], &data2)
	if err != nil {
		t.Fatal(err)
	}
	if n2 != n {
		t.Errorf("unmarshalled %v, expected %v", n2, n)
	}
	if data.U8 != data2.U8 || data.U16 != data2.U16 {
		t.Errorf("U8/U16: %x/%x, %x/%x", data.U8, data.U16,
			data2.U8, data2.U16)
	}
	if data.U32 != data2.U32 {
		t.Errorf("U32: %x, %x", data.U32, data2.U32)
	}
	if data.U64 != data2.U64 {
		t.Errorf("U64: %x, %x", data.U64, data2.U64)
	}
	if !bytes.Equal(data.Data, data2.Data) {
		t.Errorf("Data: %x, %x", data.Data, data2.Data)
	}
}

type entry struct {
	Group uint16
	Key   []byte `tls:"u16"`
}

type tagged struct {
	Version uint16
	Random  [4]byte
	ID      []byte   `tls:"u8"`
	Suites  []uint16 `tls:"u16"`
	Entries []entry  `tls:"u16"`
	Name    string   `tls:"u8"`
	Long    []byte   `tls:"u24"`
	Flag    bool
}

func TestMarshalTags(t *testing.T) {
	v := &tagged{
		Version: 0x0303,
		Random:  [4]byte{1, 2, 3, 4},
		ID:      []byte{0xaa},
		Suites:  []uint16{0xc02b, 0xc02f},
		Entries: []entry{
			{Group: 23, Key: []byte{4, 5}},
			{Group: 29, Key: nil},
		},
		Name: "example.com",
		Long: []byte{9},
		Flag: true,
	}
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{
		0x03, 0x03,
		1, 2, 3, 4,
		1, 0xaa,
		0, 4, 0xc0, 0x2b, 0xc0, 0x2f,
		0, 10, 0, 23, 0, 2, 4, 5, 0, 29, 0, 0,
		11, 'e', 'x', 'a', 'm', 'p', 'l', 'e', '.', 'c', 'o', 'm',
		0, 0, 1, 9,
		1,
	}
	if !bytes.Equal(data, expected) {
		t.Fatalf("Marshal:\n got %x\nwant %x", data, expected)
	}

	var v2 tagged
	n, err := UnmarshalFrom(data, &v2)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Errorf("consumed %v, expected %v", n, len(data))
	}
	if len(v2.Entries) != 2 || v2.Entries[1].Group != 29 ||
		!bytes.Equal(v2.Entries[0].Key, []byte{4, 5}) {
		t.Errorf("Entries: %v", v2.Entries)
	}
	if v2.Name != v.Name || !v2.Flag || v2.Suites[1] != 0xc02f {
		t.Errorf("decoded %+v", v2)
	}
}

func TestUnmarshalShort(t *testing.T) {
	data, err := Marshal(&marshalTest{Data: []byte("abc")})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(data); i++ {
		var v marshalTest
		_, err := UnmarshalFrom(data[:i], &v)
		if !errors.Is(err, ErrShort) {
			t.Errorf("UnmarshalFrom(%d bytes): got %v, expected %v",
				i, err, ErrShort)
		}
	}
}

func TestMarshalOverflow(t *testing.T) {
	v := &struct {
		Data []byte `tls:"u8"`
	}{
		Data: make([]byte, 256),
	}
	_, err := Marshal(v)
	if err == nil {
		t.Fatalf("u8 prefix overflow not detected")
	}
	var buf [4]byte
	_, err = MarshalTo(buf[:], &marshalTest{})
	if !errors.Is(err, ErrShort) {
		t.Errorf("MarshalTo: got %v, expected %v", err, ErrShort)
	}
}
