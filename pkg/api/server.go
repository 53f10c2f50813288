// Package api provides the REST API server for accordionmidi
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gin-gonic/gin"
	"github.com/james-see/accordionmidi/pkg/converter"
	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gitlab.com/gomidi/midi/v2"
)

// unsupportedLayout tags configurations for another keyboard
const unsupportedLayout ftag.Kind = "UNSUPPORTED_LAYOUT"

// @title AccordionMIDI API
// @version 1.0
// @description API for editing and converting MIDI accordion keyboard configurations
// @host localhost:8080
// @BasePath /api/v1

// Server serves one virtual keyboard
type Server struct {
	session *sysex.Session
	conv    *converter.Converter
	send    keyboard.SendFunc
}

// NewServer creates a server editing session. Button messages go to send,
// which may be nil.
func NewServer(session *sysex.Session, conv *converter.Converter, send keyboard.SendFunc) *Server {
	return &Server{session: session, conv: conv, send: send}
}

// Run serves on addr
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert/:from/:to", s.handleConversion)
		v1.GET("/formats", listFormats)
		v1.GET("/layouts", listLayouts)

		v1.GET("/bank", s.getBank)
		v1.PUT("/bank", s.putBank)
		v1.GET("/bank/syx", s.getBankSyx)
		v1.POST("/bank/syx", s.postBankSyx)
		v1.GET("/bank/state", s.getState)

		v1.POST("/buttons/:index/press", s.pressButton)
		v1.POST("/buttons/:index/release", s.releaseButton)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// abort writes err as a JSON error. The fault tag picks the status.
func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		status = http.StatusBadRequest
	case unsupportedLayout:
		status = http.StatusUnprocessableEntity
	}
	msg := err.Error()
	if issue := fmsg.GetIssue(err); issue != "" {
		msg = issue
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(err error, msg string) error {
	return fault.Wrap(err, fmsg.With(msg), ftag.With(ftag.InvalidArgument))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "accordionmidi",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported bank file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	formats := make([]string, 0, len(converter.Formats))
	for _, f := range converter.Formats {
		formats = append(formats, string(f))
	}
	c.JSON(http.StatusOK, gin.H{
		"formats":     formats,
		"conversions": converter.GetSupportedConversions(),
	})
}

// listLayouts godoc
// @Summary List keyboard layouts
// @Description Returns the supported button layouts
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]any
// @Router /api/v1/layouts [get]
func listLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"layouts": []gin.H{
			{"id": keyboard.LayoutRightHand, "name": "Right hand", "buttons": keyboard.Buttons},
		},
	})
}

// handleConversion godoc
// @Summary Convert a bank file
// @Description Upload a bank file and receive it in another format
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param from path string true "Input format (syx, json, yaml, midi)"
// @Param to path string true "Output format (syx, json, yaml, midi)"
// @Param file formData file true "Bank file to convert"
// @Param chunk_size query int false "SysEx chunk size (default: 100)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/{from}/{to} [post]
func (s *Server) handleConversion(c *gin.Context) {
	from := converter.Format(c.Param("from"))
	to := converter.Format(c.Param("to"))

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	conv, ok := s.converterFor(c)
	if !ok {
		return
	}
	if _, ok := conv.Codec(to); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}
	if _, ok := conv.Codec(from); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	result, err := conv.Convert(data, from, to)
	if err != nil {
		abort(c, badRequest(err, "conversion failed"))
		return
	}

	// Generate output filename
	outputName := header.Filename
	if i := strings.LastIndexByte(outputName, '.'); i > 0 {
		outputName = outputName[:i]
	} else {
		outputName = "converted"
	}
	outputName += extension(to)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType(to), result)
}

// converterFor applies the chunk_size query parameter
func (s *Server) converterFor(c *gin.Context) (*converter.Converter, bool) {
	size := s.conv.ChunkSize()
	if q := c.Query("chunk_size"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= sysex.HeaderSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid chunk size %q", q)})
			return nil, false
		}
		size = n
	}
	return converter.New(size), true
}

func extension(f converter.Format) string {
	if f == converter.FormatMIDI {
		return ".mid"
	}
	return "." + string(f)
}

func contentType(f converter.Format) string {
	switch f {
	case converter.FormatMIDI:
		return "audio/midi"
	case converter.FormatJSON:
		return "application/json"
	case converter.FormatYAML:
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// getBank godoc
// @Summary Get the bank
// @Description Returns the keyboard's bank
// @Tags bank
// @Produce json
// @Success 200 {object} keyboard.BankFile
// @Router /api/v1/bank [get]
func (s *Server) getBank(c *gin.Context) {
	c.JSON(http.StatusOK, keyboard.NewBankFile(s.session.Snapshot()))
}

// putBank godoc
// @Summary Replace the bank
// @Description Replaces the name and every button. Buttons left out are set to none.
// @Tags bank
// @Accept json
// @Produce json
// @Param bank body keyboard.BankFile true "Bank"
// @Success 200 {object} keyboard.BankFile
// @Failure 400 {object} map[string]string
// @Router /api/v1/bank [put]
func (s *Server) putBank(c *gin.Context) {
	var f keyboard.BankFile
	if err := c.ShouldBindJSON(&f); err != nil {
		abort(c, badRequest(err, "invalid bank"))
		return
	}
	if err := s.session.Update(f.Apply); err != nil {
		abort(c, badRequest(err, "invalid bank"))
		return
	}
	s.getBank(c)
}

// getBankSyx godoc
// @Summary Dump the bank
// @Description Returns the configuration stream as a .syx file
// @Tags bank
// @Produce application/octet-stream
// @Param chunk_size query int false "SysEx chunk size (default: 100)"
// @Success 200 {file} binary
// @Router /api/v1/bank/syx [get]
func (s *Server) getBankSyx(c *gin.Context) {
	conv, ok := s.converterFor(c)
	if !ok {
		return
	}
	codec, _ := conv.Codec(converter.FormatSyx)
	data, err := codec.Generate(s.session.Snapshot())
	if err != nil {
		abort(c, fault.Wrap(err, fmsg.With("dump failed")))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=bank.syx")
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// postBankSyx godoc
// @Summary Receive a configuration
// @Description Feeds the SysEx messages of the body to the keyboard as if received over MIDI
// @Tags bank
// @Accept application/octet-stream
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/v1/bank/syx [post]
func (s *Server) postBankSyx(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}
	msgs := sysex.Split(data)
	if len(msgs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No SysEx messages"})
		return
	}

	for i, msg := range msgs {
		if err := s.session.HandleChunk(msg); err != nil {
			tag := ftag.InvalidArgument
			if errors.Is(err, sysex.ErrLayout) {
				tag = unsupportedLayout
			}
			abort(c, fault.Wrap(err, fmsg.With(fmt.Sprintf("message %d", i)), ftag.With(tag)))
			return
		}
	}

	st := s.session.State()
	c.JSON(http.StatusOK, gin.H{
		"edit_id":  s.session.EditID(),
		"messages": len(msgs),
		"complete": st.Phase == sysex.PhaseIdle,
		"name":     s.session.Snapshot().Name(),
	})
}

// getState godoc
// @Summary Decoder state
// @Description Returns the progress of the configuration being received
// @Tags bank
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/bank/state [get]
func (s *Server) getState(c *gin.Context) {
	st := s.session.State()
	c.JSON(http.StatusOK, gin.H{
		"edit_id":   s.session.EditID(),
		"phase":     st.Phase.String(),
		"cursor":    st.Cursor,
		"resyncing": st.Resyncing,
	})
}

// pressButton godoc
// @Summary Press a button
// @Description Activates a button and returns the MIDI messages it sent
// @Tags buttons
// @Produce json
// @Param index path int true "Button index (0-80)"
// @Success 200 {object} map[string][]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/buttons/{index}/press [post]
func (s *Server) pressButton(c *gin.Context) {
	s.handleButton(c, s.session.Press)
}

// releaseButton godoc
// @Summary Release a button
// @Description Deactivates a button and returns the MIDI messages it sent
// @Tags buttons
// @Produce json
// @Param index path int true "Button index (0-80)"
// @Success 200 {object} map[string][]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/buttons/{index}/release [post]
func (s *Server) releaseButton(c *gin.Context) {
	s.handleButton(c, s.session.Release)
}

func (s *Server) handleButton(c *gin.Context, action func(int, keyboard.SendFunc) error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid button index"})
		return
	}

	sent := []string{}
	send := func(msg midi.Message) error {
		sent = append(sent, fmt.Sprintf("% X", []byte(msg)))
		if s.send != nil {
			return s.send(msg)
		}
		return nil
	}

	if err := action(index, send); err != nil {
		if index < 0 || index >= keyboard.Buttons {
			err = badRequest(err, "invalid button")
		}
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sent})
}
