package serializer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

type message struct {
	ID      uuid.UUID `json:"id" cbor:"id" binn:"id"`
	Name    string    `json:"name" cbor:"name" binn:"name"`
	Count   int       `json:"count" cbor:"count" binn:"count"`
	Created time.Time `json:"created" cbor:"created" binn:"created"`
	Tags    []string  `json:"tags" cbor:"tags" binn:"tags"`
}

type SerializerSuite struct {
	suite.Suite
	serializers []Serializer
}

func (s *SerializerSuite) SetupSuite() {
	c, err := NewCBORSerializer()
	s.Require().NoError(err)
	s.serializers = []Serializer{NewBinnSerializer(nil, nil), JSONSerializer{}, c}
}

func (s *SerializerSuite) TestRoundTrip() {
	in := message{
		ID:      uuid.New(),
		Name:    "a",
		Count:   -3,
		Created: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Tags:    []string{"x", "y"},
	}
	for _, ser := range s.serializers {
		data, err := ser.Marshal(in)
		s.Require().NoError(err, ser.Name())

		var out message
		s.Require().NoError(ser.Unmarshal(data, &out), ser.Name())
		s.Equal(in.ID, out.ID, ser.Name())
		s.Equal(in.Name, out.Name, ser.Name())
		s.Equal(in.Count, out.Count, ser.Name())
		s.True(in.Created.Equal(out.Created), ser.Name())
		s.Equal(in.Tags, out.Tags, ser.Name())
	}
}

func (s *SerializerSuite) TestGeneric() {
	for _, ser := range s.serializers {
		data, err := ser.Marshal(map[string]any{"n": 7})
		s.Require().NoError(err)

		var out any
		s.Require().NoError(ser.Unmarshal(data, &out))
		m, ok := out.(map[string]any)
		s.Require().True(ok, ser.Name())
		s.EqualValues(7, m["n"], ser.Name())
	}
}

func (s *SerializerSuite) TestNames() {
	s.Equal([]string{NameBinn, NameJSON, NameCBOR}, []string{
		s.serializers[0].Name(), s.serializers[1].Name(), s.serializers[2].Name(),
	})
}

func (s *SerializerSuite) TestBinnDecodeFailure() {
	ser := NewBinnSerializer(nil, nil)
	var out any
	for i := 0; i < 3; i++ {
		err := ser.Unmarshal([]byte{0xE0, 0x05}, &out)
		s.ErrorIs(err, merr.ErrTruncatedInput)
	}
}

func (s *SerializerSuite) TestCBORDiagnose() {
	c, err := NewCBORSerializer()
	s.Require().NoError(err)
	data, err := c.Marshal(map[string]int{"a": 1})
	s.Require().NoError(err)
	diag, err := c.Diagnose(data)
	s.Require().NoError(err)
	s.Equal(`{"a": 1}`, diag)
}

func TestSerializer(t *testing.T) {
	suite.Run(t, new(SerializerSuite))
}
