package main

import (
	"testing"

	"github.com/srg/textwatch/internal/protocol"
	"github.com/srg/textwatch/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type EncodeTestSuite struct {
	CommandTestSuite
}

func (s *EncodeTestSuite) TestEncode() {
	// GOAL: Verify settings JSON is printed as the message the watch receives
	//
	// TEST SCENARIO: Encode settings with each flag combination → output matches expected text

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "all fields",
			args:     []string{"encode", `{"invert":true,"text_align":"right","lang":"fr"}`},
			expected: `{"0":1,"1":2,"2":5}`,
		},
		{
			name:     "defaults for unknown values",
			args:     []string{"encode", `{"text_align":"justify","lang":"xx"}`},
			expected: `{"0":0,"1":0,"2":3}`,
		},
		{
			name:     "named keys",
			args:     []string{"encode", `{"lang":"de"}`, "--named"},
			expected: `{"INVERT":0,"TEXT_ALIGN":0,"LANGUAGE":1}`,
		},
		{
			name: "with dictionary hex",
			args: []string{"encode", `{}`, "--hex"},
			expected: `{"0":0,"1":0,"2":3}
dict: 03000000000304000000000001000000030400000000000200000003040003000000`,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.resetFlags()
			output, err := s.ExecuteCommand(rootCmd, tt.args...)

			s.Require().NoError(err)
			testutils.NewTextAsserter(s.T()).WithOptions(testutils.WithTrimSpace(true)).Assert(output, tt.expected)
		})
	}
}

func (s *EncodeTestSuite) TestEncode_InvalidJSON() {
	_, err := s.ExecuteCommand(rootCmd, "encode", `{"invert":`)

	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "invalid settings")
}

func (s *EncodeTestSuite) TestDecode_Configuration() {
	output, err := s.ExecuteCommand(rootCmd, "decode", "01:00:00:00:00:03:04:00:01:00:00:00")

	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).WithOptions(testutils.WithTrimSpace(true)).Assert(output,
		`{"0":1}
settings: {"invert":true,"lang":"en_US","text_align":"center"}`)
}

func (s *EncodeTestSuite) TestDecode_GlucoseMessage() {
	dict, err := protocol.MarshalDict(protocol.GlucoseMessage(120, 2, 1700000000))
	s.Require().NoError(err)

	output, err := s.ExecuteCommand(rootCmd, "decode", testutils.HexString(dict))

	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(output, `{"10":120,"11":2,"13":1700000000}`)
}

func (s *EncodeTestSuite) TestDecode_Malformed() {
	_, err := s.ExecuteCommand(rootCmd, "decode", "0100")

	s.Require().Error(err)
	var decodeErr *protocol.DecodeError
	s.Require().ErrorAs(err, &decodeErr)
	s.Assert().Contains(FormatUserError(err), "invalid AppMessage dictionary")
}

func (s *EncodeTestSuite) TestDecode_InvalidHex() {
	_, err := s.ExecuteCommand(rootCmd, "decode", "zz")

	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "invalid hex data")
}

func TestEncodeTestSuite(t *testing.T) {
	suite.Run(t, new(EncodeTestSuite))
}
