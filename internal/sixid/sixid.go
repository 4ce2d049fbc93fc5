package sixid

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HookFunc is the signature of the New test hook. When it returns
// override=true the returned ID is used instead of a random one.
type HookFunc func() (id SixID, override bool)

// NewHook can be set by tests to make ID generation deterministic.
var NewHook HookFunc

// SixID is a 6-byte identifier stored in BSON as BinData with custom
// subtype 0x80 and rendered as 10 characters of Crockford Base32.
type SixID [6]byte

const binarySubtype = 0x80

// New returns a fresh random SixID. 48 random bits keep the collision
// probability negligible even with multiple workers generating IDs
// concurrently against the same collections.
func New() SixID {
	if NewHook != nil {
		if id, override := NewHook(); override {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; a zero ID
		// will collide immediately and surface as a duplicate key.
		return SixID{}
	}
	return id
}

// Crockford Base32: no I, L, O, U.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var decodeMap = func() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = byte(i)
	}
	for i := 10; i < len(alphabet); i++ {
		m[strings.ToLower(alphabet)[i]] = byte(i)
	}
	// Commonly confused characters decode leniently.
	m['o'], m['O'] = m['0'], m['0']
	m['i'], m['I'] = m['1'], m['1']
	m['l'], m['L'] = m['1'], m['1']
	return m
}()

// String renders the ID as 10 uppercase Crockford Base32 characters.
func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var bits uint
	var n uint
	for _, b := range u {
		bits |= uint(b) << n
		n += 8
		for n >= 5 {
			out = append(out, alphabet[bits&0x1F])
			bits >>= 5
			n -= 5
		}
	}
	if n > 0 {
		out = append(out, alphabet[bits&0x1F])
	}
	return string(out)
}

// IsZero reports whether the ID is the all-zero sentinel.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Parse decodes a 10-character Crockford Base32 string into a SixID.
// Hyphens and spaces are stripped for leniency. An empty string parses
// to the zero ID.
func Parse(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 10 {
		return SixID{}, errors.New("sixid: encoded length must be 10")
	}

	var id SixID
	var bits uint64
	var n uint
	idx := 0
	for i := 0; i < 10; i++ {
		v, ok := decodeMap[s[i]]
		if !ok {
			return SixID{}, fmt.Errorf("sixid: invalid character %q", s[i])
		}
		bits |= uint64(v) << n
		n += 5
		for n >= 8 && idx < 6 {
			id[idx] = byte(bits & 0xFF)
			idx++
			bits >>= 8
			n -= 8
		}
	}
	if idx != 6 {
		return SixID{}, errors.New("sixid: could not decode 6 bytes")
	}
	return id, nil
}

// MarshalBSONValue stores the ID as BinData subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: binarySubtype, Data: u[:]})
}

// UnmarshalBSONValue accepts BinData subtype 0x80 of length 6. BSON null
// decodes to the zero ID.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*u = SixID{}
		return nil
	}
	if t != bson.TypeBinary {
		return fmt.Errorf("sixid: cannot decode BSON type %s", t)
	}
	var bin primitive.Binary
	raw := bson.RawValue{Type: t, Value: data}
	if err := raw.Unmarshal(&bin); err != nil {
		return err
	}
	if bin.Subtype != binarySubtype || len(bin.Data) != 6 {
		return errors.New("sixid: BSON binary has wrong subtype or length")
	}
	copy(u[:], bin.Data)
	return nil
}

// MarshalJSON renders the ID as its Crockford Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the Crockford Base32 string form.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := Parse(s)
	if err != nil {
		return err
	}
	*u = id
	return nil
}
