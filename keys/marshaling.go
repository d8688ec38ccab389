package keys

import (
	"encoding/xml"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/privacybydesign/graphsig/big"
)

// Bases holds the R bases of a public key. R[0] carries the master secret, the remaining
// bases carry vertices and edges as laid out by EncodingParameters.
type Bases []*big.Int

// Helper structs for (un)marshaling
type (
	// xmlBases encodes bases as <Bases num="n"><Base_0>..</Base_0>...</Bases>.
	xmlBases struct {
		Num   int        `xml:"num,attr"`
		Bases []*xmlBase `xml:",any"`
	}

	xmlBase struct {
		XMLName xml.Name
		Bigint  string `xml:",innerxml"` // Has to be a string for ",innerxml" to work
	}
)

// UnmarshalXML is an internal function to simplify decoding a PublicKey from
// XML.
func (bl *Bases) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var t xmlBases

	if err := d.DecodeElement(&t, &start); err != nil {
		return err
	}
	if t.Num != len(t.Bases) {
		return errors.Errorf("expected %d bases, found %d", t.Num, len(t.Bases))
	}

	arr := make([]*big.Int, t.Num)
	for i := range arr {
		var ok bool
		if arr[i], ok = new(big.Int).SetString(t.Bases[i].Bigint, 10); !ok {
			return errors.Errorf("base %s is not a base 10 integer", t.Bases[i].XMLName.Local)
		}
	}

	*bl = arr
	return nil
}

// MarshalXML is an internal function to simplify encoding a PublicKey to XML.
func (bl *Bases) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	l := len(*bl)
	bases := make([]*xmlBase, l)

	for i := range bases {
		bases[i] = &xmlBase{
			XMLName: xml.Name{Local: "Base_" + strconv.Itoa(i)},
			Bigint:  (*bl)[i].String(),
		}
	}

	t := xmlBases{
		Num:   l,
		Bases: bases,
	}
	return e.EncodeElement(t, start)
}
