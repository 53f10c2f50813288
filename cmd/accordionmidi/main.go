// Package main is the entry point for accordionmidi CLI
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/james-see/accordionmidi/pkg/api"
	"github.com/james-see/accordionmidi/pkg/config"
	"github.com/james-see/accordionmidi/pkg/converter"
	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
	"github.com/james-see/accordionmidi/pkg/transport"
	"github.com/james-see/accordionmidi/pkg/tui"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	chunkSize  int
	inPort     string
	outPort    string
	outputFile string
	format     string
	timeout    time.Duration
	serverAddr string
	trigger    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "accordionmidi",
	Short: "Configure MIDI accordion keyboards",
	Long: `accordionmidi edits, converts and transfers the button configuration
of a MIDI accordion right hand keyboard.

A configuration holds a name and the MIDI action of each of the 81 buttons.
It travels as a chunked SysEx stream and is stored as .syx, .json, .yaml or
.mid files.

Examples:
  accordionmidi convert bank.yaml -o bank.syx
  accordionmidi show bank.syx
  accordionmidi send bank.json --out "Accordion"
  accordionmidi dump -o current.syx
  accordionmidi emulate --in "IAC Bus 1" --out "IAC Bus 2"
  accordionmidi tui
  accordionmidi serve --addr :8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var exportCmd = &cobra.Command{
	Use:   "export [bank]",
	Short: "Write a bank, or the factory bank, in the given format",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var showCmd = &cobra.Command{
	Use:   "show [bank]",
	Short: "Print the buttons of a bank",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var sendCmd = &cobra.Command{
	Use:   "send <bank>",
	Short: "Send a bank to the keyboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Request the configuration of the keyboard",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

var emulateCmd = &cobra.Command{
	Use:   "emulate [bank]",
	Short: "Run a virtual keyboard on MIDI ports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEmulate,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the current settings to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [bank]",
	Short: "Launch interactive terminal UI",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve [bank]",
	Short: "Start the API server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default is the user config dir)")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 0, "SysEx chunk size in bytes, header included")
	rootCmd.PersistentFlags().StringVar(&inPort, "in", "", "MIDI input port (substring match)")
	rootCmd.PersistentFlags().StringVar(&outPort, "out", "", "MIDI output port (substring match)")

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// export command
	exportCmd.Flags().StringVarP(&format, "format", "f", "syx", "Output format (syx, json, yaml, mid)")
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")

	// dump command
	dumpCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (prints the bank when empty)")
	dumpCmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Time to wait for the dump")

	// emulate command
	emulateCmd.Flags().IntVar(&trigger, "trigger", -1, "Channel 0-15 whose notes press buttons (default from config)")

	// serve command
	serveCmd.Flags().StringVarP(&serverAddr, "addr", "a", "", "Listen address (default from config)")

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(emulateCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// settings is the config file with the command line flags applied
type settings struct {
	*config.Config
	in, out string
	trigger uint8
}

func loadSettings() (*settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if chunkSize != 0 {
		cfg.ChunkSize = chunkSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &settings{Config: cfg, in: inPort, out: outPort}
	if d := cfg.CurrentDevice(); d != nil {
		if s.in == "" {
			s.in = d.InPort
		}
		if s.out == "" {
			s.out = d.OutPort
		}
		s.trigger = d.TriggerChannel
	}
	return s, nil
}

// loadBank reads the bank given on the command line, then the configured
// bank, then falls back to the factory bank
func loadBank(s *settings, conv *converter.Converter, args []string) (*keyboard.Bank, string, error) {
	path := s.BankPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return keyboard.Default(), "", nil
	}
	b, err := conv.ParseFile(path)
	if err != nil {
		return nil, "", err
	}
	return b, path, nil
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	input := args[0]
	conv := converter.New(s.ChunkSize)

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	conv := converter.New(s.ChunkSize)

	f := converter.Format(strings.ToLower(format))
	if f == "mid" {
		f = converter.FormatMIDI
	}
	if _, ok := conv.Codec(f); !ok {
		return fmt.Errorf("unsupported format: %s", format)
	}

	b, path, err := loadBank(s, conv, args)
	if err != nil {
		return err
	}
	if path == "" {
		path = "bank"
	}
	ext := "." + string(f)
	if f == converter.FormatMIDI {
		ext = ".mid"
	}
	output := getOutputPath(path, ext)
	if output == path {
		return fmt.Errorf("output would overwrite %s, use -o", path)
	}

	if err := conv.WriteFile(b, output); err != nil {
		return err
	}
	fmt.Printf("Exported %q -> %s\n", b.Name(), output)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	b, _, err := loadBank(s, converter.New(s.ChunkSize), args)
	if err != nil {
		return err
	}
	printBank(b)
	return nil
}

func printBank(b *keyboard.Bank) {
	fmt.Printf("Name: %s\n", b.Name())
	fmt.Printf("Stream: %d bytes\n", sysex.EncodedLen(b))
	for i, a := range b.Actions() {
		group, offset := keyboard.GroupOffset(i)
		fmt.Printf("  %2d  [%2d/%d]  %s\n", i, group, offset, a)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	b, _, err := loadBank(s, converter.New(s.ChunkSize), args)
	if err != nil {
		return err
	}

	mgr := transport.NewManager()
	defer mgr.Close()

	fmt.Printf("Sending %q to %s...\n", b.Name(), s.out)
	n, err := mgr.SendBank(s.out, b, s.ChunkSize, s.ChunkGap())
	if err != nil {
		return err
	}
	fmt.Printf("Sent %d chunks\n", n)
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	mgr := transport.NewManager()
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	fmt.Printf("Requesting configuration from %s...\n", s.out)
	b, err := mgr.RequestDump(ctx, s.in, s.out, keyboard.LayoutRightHand)
	if err != nil {
		return err
	}

	if outputFile == "" {
		printBank(b)
		return nil
	}
	if err := converter.New(s.ChunkSize).WriteFile(b, outputFile); err != nil {
		return err
	}
	fmt.Printf("Saved %q -> %s\n", b.Name(), outputFile)
	return nil
}

func runEmulate(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	b, _, err := loadBank(s, converter.New(s.ChunkSize), args)
	if err != nil {
		return err
	}
	ch := s.trigger
	if trigger >= 0 {
		if trigger > keyboard.MaxChannel {
			return fmt.Errorf("trigger channel %d out of range 0-15", trigger)
		}
		ch = uint8(trigger)
	}

	mgr := transport.NewManager()
	defer mgr.Close()

	send, err := mgr.Sender(s.out)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "[emulate] ", log.LstdFlags)
	device := transport.NewDevice(b, send, ch, s.ChunkSize, logger)

	stop, err := mgr.Listen(s.in, device.HandleMessage)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Printf("Emulating %q: in %s, out %s, trigger channel %d\n", b.Name(), s.in, s.out, ch)
	fmt.Println("Press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	mgr := transport.NewManager()
	defer mgr.Close()

	fmt.Println("Inputs:")
	for _, p := range mgr.ListInPorts() {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("Outputs:")
	for _, p := range mgr.ListOutPorts() {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if d := s.CurrentDevice(); d != nil {
		d.InPort = s.in
		d.OutPort = s.out
	}
	path, err := config.ResolvePath(configPath)
	if err != nil {
		return err
	}
	if err := s.Save(path); err != nil {
		return err
	}
	fmt.Printf("Saved settings -> %s\n", path)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	conv := converter.New(s.ChunkSize)
	b, _, err := loadBank(s, conv, args)
	if err != nil {
		return err
	}

	mgr := transport.NewManager()
	defer mgr.Close()

	return tui.Run(conv, b, func(b *keyboard.Bank) (int, error) {
		return mgr.SendBank(s.out, b, s.ChunkSize, s.ChunkGap())
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	conv := converter.New(s.ChunkSize)
	b, _, err := loadBank(s, conv, args)
	if err != nil {
		return err
	}
	addr := serverAddr
	if addr == "" {
		addr = s.Addr
	}

	// Buttons are played on the output port when there is one
	var send keyboard.SendFunc
	mgr := transport.NewManager()
	defer mgr.Close()
	if out, err := mgr.Sender(s.out); err == nil {
		send = out
		fmt.Printf("Playing buttons on %s\n", s.out)
	}

	session := sysex.NewSession(b,
		sysex.WithChunkSize(s.ChunkSize),
		sysex.WithLogger(log.New(os.Stderr, "[session] ", log.LstdFlags)),
	)
	fmt.Printf("Starting API server on %s...\n", addr)
	return api.NewServer(session, conv, send).Run(addr)
}
