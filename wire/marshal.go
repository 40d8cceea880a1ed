//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package wire implements reflection-based encoding of protocol
// structures. Integers are encoded in network byte order. Variable
// length fields (slices and strings) carry a length prefix whose
// width is selected with the `tls` struct tag: "u8", "u16", "u24", or
// "u32" (default). The length prefix counts bytes, not elements.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
)

var bo = binary.BigEndian

// ErrShort is returned when the input buffer ends before the value
// is fully decoded or when the output buffer is too small.
var ErrShort = errors.New("wire: short buffer")

// Marshal encodes v.
func Marshal(v interface{}) ([]byte, error) {
	return encode(nil, reflect.ValueOf(v), "")
}

// MarshalTo encodes v into buf and returns the number of bytes
// written.
func MarshalTo(buf []byte, v interface{}) (int, error) {
	data, err := Marshal(v)
	if err != nil {
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, ErrShort
	}
	return copy(buf, data), nil
}

// UnmarshalFrom decodes buf into v, which must be a pointer. It
// returns the number of bytes consumed.
func UnmarshalFrom(buf []byte, v interface{}) (int, error) {
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return 0, fmt.Errorf("wire: unmarshal into non-pointer %T", v)
	}
	return decode(buf, value, "")
}

func prefixWidth(tag string) (int, error) {
	switch tag {
	case "u8":
		return 1, nil
	case "u16":
		return 2, nil
	case "u24":
		return 3, nil
	case "", "u32":
		return 4, nil
	default:
		return 0, fmt.Errorf("wire: invalid length tag %q", tag)
	}
}

func putPrefix(out []byte, width, length int) ([]byte, error) {
	if width < 4 && length >= 1<<(8*width) {
		return nil, fmt.Errorf("wire: length %d overflows u%d prefix",
			length, width*8)
	}
	for i := width - 1; i >= 0; i-- {
		out = append(out, byte(length>>(8*i)))
	}
	return out, nil
}

func getPrefix(buf []byte, width int) (int, error) {
	if len(buf) < width {
		return 0, ErrShort
	}
	var length int
	for i := 0; i < width; i++ {
		length = length<<8 | int(buf[i])
	}
	return length, nil
}

func encode(out []byte, v reflect.Value, tag string) ([]byte, error) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, fmt.Errorf("wire: nil %v", v.Type())
		}
		return encode(out, v.Elem(), tag)

	case reflect.Bool:
		if v.Bool() {
			return append(out, 1), nil
		}
		return append(out, 0), nil

	case reflect.Uint8:
		return append(out, byte(v.Uint())), nil

	case reflect.Uint16:
		return bo.AppendUint16(out, uint16(v.Uint())), nil

	case reflect.Uint32:
		return bo.AppendUint32(out, uint32(v.Uint())), nil

	case reflect.Uint64:
		return bo.AppendUint64(out, v.Uint()), nil

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			for i := 0; i < v.Len(); i++ {
				out = append(out, byte(v.Index(i).Uint()))
			}
			return out, nil
		}
		var err error
		for i := 0; i < v.Len(); i++ {
			out, err = encode(out, v.Index(i), "")
			if err != nil {
				return nil, err
			}
		}
		return out, nil

	case reflect.String:
		width, err := prefixWidth(tag)
		if err != nil {
			return nil, err
		}
		out, err = putPrefix(out, width, v.Len())
		if err != nil {
			return nil, err
		}
		return append(out, v.String()...), nil

	case reflect.Slice:
		width, err := prefixWidth(tag)
		if err != nil {
			return nil, err
		}
		var body []byte
		if v.Type().Elem().Kind() == reflect.Uint8 {
			body = v.Bytes()
		} else {
			for i := 0; i < v.Len(); i++ {
				body, err = encode(body, v.Index(i), "")
				if err != nil {
					return nil, err
				}
			}
		}
		out, err = putPrefix(out, width, len(body))
		if err != nil {
			return nil, err
		}
		return append(out, body...), nil

	case reflect.Struct:
		t := v.Type()
		var err error
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			out, err = encode(out, v.Field(i), field.Tag.Get("tls"))
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("wire: unsupported type %v", v.Type())
	}
}

func decode(buf []byte, v reflect.Value, tag string) (int, error) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return decode(buf, v.Elem(), tag)

	case reflect.Bool:
		if len(buf) < 1 {
			return 0, ErrShort
		}
		switch buf[0] {
		case 0:
			v.SetBool(false)
		case 1:
			v.SetBool(true)
		default:
			return 0, fmt.Errorf("wire: invalid bool value %d", buf[0])
		}
		return 1, nil

	case reflect.Uint8:
		if len(buf) < 1 {
			return 0, ErrShort
		}
		v.SetUint(uint64(buf[0]))
		return 1, nil

	case reflect.Uint16:
		if len(buf) < 2 {
			return 0, ErrShort
		}
		v.SetUint(uint64(bo.Uint16(buf)))
		return 2, nil

	case reflect.Uint32:
		if len(buf) < 4 {
			return 0, ErrShort
		}
		v.SetUint(uint64(bo.Uint32(buf)))
		return 4, nil

	case reflect.Uint64:
		if len(buf) < 8 {
			return 0, ErrShort
		}
		v.SetUint(bo.Uint64(buf))
		return 8, nil

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if len(buf) < v.Len() {
				return 0, ErrShort
			}
			for i := 0; i < v.Len(); i++ {
				v.Index(i).SetUint(uint64(buf[i]))
			}
			return v.Len(), nil
		}
		var ofs int
		for i := 0; i < v.Len(); i++ {
			n, err := decode(buf[ofs:], v.Index(i), "")
			if err != nil {
				return 0, err
			}
			ofs += n
		}
		return ofs, nil

	case reflect.String:
		width, err := prefixWidth(tag)
		if err != nil {
			return 0, err
		}
		length, err := getPrefix(buf, width)
		if err != nil {
			return 0, err
		}
		if len(buf) < width+length {
			return 0, ErrShort
		}
		v.SetString(string(buf[width : width+length]))
		return width + length, nil

	case reflect.Slice:
		width, err := prefixWidth(tag)
		if err != nil {
			return 0, err
		}
		length, err := getPrefix(buf, width)
		if err != nil {
			return 0, err
		}
		if len(buf) < width+length {
			return 0, ErrShort
		}
		body := buf[width : width+length]
		if v.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, length)
			copy(data, body)
			v.SetBytes(data)
			return width + length, nil
		}
		slice := reflect.MakeSlice(v.Type(), 0, 0)
		for ofs := 0; ofs < len(body); {
			elem := reflect.New(v.Type().Elem()).Elem()
			n, err := decode(body[ofs:], elem, "")
			if err != nil {
				return 0, err
			}
			if n == 0 {
				return 0, fmt.Errorf("wire: zero-length %v element",
					v.Type().Elem())
			}
			ofs += n
			slice = reflect.Append(slice, elem)
		}
		v.Set(slice)
		return width + length, nil

	case reflect.Struct:
		t := v.Type()
		var ofs int
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			n, err := decode(buf[ofs:], v.Field(i), field.Tag.Get("tls"))
			if err != nil {
				return 0, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
			}
			ofs += n
		}
		return ofs, nil

	default:
		return 0, fmt.Errorf("wire: unsupported type %v", v.Type())
	}
}
