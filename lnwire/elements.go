package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MaxSliceLength is the maximum size of any variable length slice this
// package will decode off the wire, guarding against a peer requesting an
// unbounded allocation.
const MaxSliceLength = 65535

// writeElement serializes a single element into w using the wire encoding
// appropriate to its concrete type.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint16:
		return binary.Write(w, binary.BigEndian, e)
	case uint32:
		return binary.Write(w, binary.BigEndian, e)
	case uint64:
		return binary.Write(w, binary.BigEndian, e)
	case btcutil.Amount:
		return binary.Write(w, binary.BigEndian, uint64(e))
	case MilliSatoshi:
		return binary.Write(w, binary.BigEndian, uint64(e))
	case FundingFlag:
		return binary.Write(w, binary.BigEndian, uint8(e))
	case ChannelID:
		_, err := w.Write(e[:])
		return err
	case [32]byte:
		_, err := w.Write(e[:])
		return err
	case Sig:
		_, err := w.Write(e[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case wire.OutPoint:
		if err := writeElement(w, e.Hash); err != nil {
			return err
		}
		return writeElement(w, e.Index)
	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("cannot encode nil public key")
		}
		_, err := w.Write(e.SerializeCompressed())
		return err
	case []byte:
		if len(e) > MaxSliceLength {
			return fmt.Errorf("byte slice of length %d exceeds max "+
				"allowed length of %d", len(e), MaxSliceLength)
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(e))); err != nil {
			return err
		}
		_, err := w.Write(e)
		return err
	default:
		return fmt.Errorf("unknown type in writeElement: %T", e)
	}
}

// writeElements serializes each of the elements, in order, into w.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := writeElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// readElement deserializes a single element from r into the value pointed
// to by element, using the wire encoding appropriate to its concrete type.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint16:
		return binary.Read(r, binary.BigEndian, e)
	case *uint32:
		return binary.Read(r, binary.BigEndian, e)
	case *uint64:
		return binary.Read(r, binary.BigEndian, e)
	case *btcutil.Amount:
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return err
		}
		*e = btcutil.Amount(v)
		return nil
	case *MilliSatoshi:
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return err
		}
		*e = MilliSatoshi(v)
		return nil
	case *FundingFlag:
		var v uint8
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return err
		}
		*e = FundingFlag(v)
		return nil
	case *ChannelID:
		_, err := io.ReadFull(r, e[:])
		return err
	case *[32]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *Sig:
		_, err := io.ReadFull(r, e[:])
		return err
	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	case *wire.OutPoint:
		if err := readElement(r, &e.Hash); err != nil {
			return err
		}
		return readElement(r, &e.Index)
	case **btcec.PublicKey:
		var buf [33]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(buf[:])
		if err != nil {
			return err
		}
		*e = pub
		return nil
	case *[]byte:
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return err
		}
		if length > MaxSliceLength {
			return fmt.Errorf("byte slice of length %d exceeds max "+
				"allowed length of %d", length, MaxSliceLength)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*e = buf
		return nil
	default:
		return fmt.Errorf("unknown type in readElement: %T", e)
	}
}

// readElements deserializes each of the given pointers, in order, from r.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := readElement(r, element); err != nil {
			return err
		}
	}
	return nil
}
