package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/textwatch/internal/protocol"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode <settings-json>",
	Short: "Encode watchface settings into the watch message",
	Long: fmt.Sprintf(`Encodes settings in the configuration page format into the message sent to
the watch. Missing or unknown values fall back to the defaults.

Accepted values:
  invert      true/false (or 1/0)
  text_align  %s
  lang        %s

Examples:
  # Message as JSON keyed by field code
  textwatch encode '{"invert":true,"text_align":"right","lang":"fr"}'

  # With schema key names and the AppMessage dictionary bytes
  textwatch encode '{"lang":"de"}' --named --hex`,
		strings.Join(protocol.AlignmentNames(), ", "), strings.Join(protocol.LanguageNames(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <dictionary-hex>",
	Short: "Decode an AppMessage dictionary",
	Long: `Decodes AppMessage dictionary bytes given as hex (spaces and colons allowed).
Configuration messages are also shown as settings.

Examples:
  textwatch decode 010000000003040001000000`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var (
	encodeHex   bool
	encodeNamed bool
)

func init() {
	encodeCmd.Flags().BoolVar(&encodeHex, "hex", false, "Also print the AppMessage dictionary as hex")
	encodeCmd.Flags().BoolVar(&encodeNamed, "named", false, "Use schema key names instead of field codes")
	decodeCmd.Flags().BoolVar(&encodeNamed, "named", false, "Use schema key names instead of field codes")
}

func runEncode(cmd *cobra.Command, args []string) error {
	msg, err := protocol.EncodeText(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	if err := printMessage(out, msg, encodeNamed); err != nil {
		return err
	}
	if !encodeHex {
		return nil
	}

	dict, err := protocol.MarshalDict(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint("dict:"), strings.ToUpper(hex.EncodeToString(dict)))
	return err
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	msg, err := protocol.UnmarshalDict(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printMessage(out, msg, encodeNamed); err != nil {
		return err
	}
	if !isConfiguration(msg) {
		return nil
	}

	settings, err := protocol.DecodeSettings(msg).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint("settings:"), settings)
	return err
}

// parseHex accepts hex with optional spaces, colons or dashes between bytes.
func parseHex(s string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "").Replace(strings.TrimSpace(s))
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}

func isConfiguration(msg protocol.Message) bool {
	for _, k := range msg.Keys() {
		if !k.IsConfiguration() {
			return false
		}
	}
	return len(msg) > 0
}
