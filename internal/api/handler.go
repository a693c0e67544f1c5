// Package api exposes the operator-facing HTTP surface: upload a statement,
// confirm the carrier, process into one or more normalized exports.
package api

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/insuranceops/commission-processor/internal/config"
	"github.com/insuranceops/commission-processor/internal/export"
	"github.com/insuranceops/commission-processor/internal/fileparse"
	"github.com/insuranceops/commission-processor/internal/models"
	"github.com/insuranceops/commission-processor/internal/session"
	"github.com/insuranceops/commission-processor/internal/store"
	"github.com/insuranceops/commission-processor/internal/transform"
)

// Version is reported by the health endpoint and the CLI.
const Version = "1.0.0"

var allowedExtensions = map[string]bool{
	".csv": true, ".xlsx": true, ".xml": true,
}

// Handler holds the HTTP handlers and the live per-upload sessions.
type Handler struct {
	Cfg      config.Config
	Store    store.Store
	Registry *transform.Registry
	Configs  *transform.ConfigSet
	Exporter *export.Generator

	mu       sync.Mutex
	sessions map[string]*session.Session // keyed by saved filename
}

// New wires a handler over the shared collaborators.
func New(cfg config.Config, st store.Store, reg *transform.Registry, cs *transform.ConfigSet) *Handler {
	return &Handler{
		Cfg:      cfg,
		Store:    st,
		Registry: reg,
		Configs:  cs,
		Exporter: &export.Generator{Dir: cfg.ExportDir, Format: cfg.ExportFormat},
		sessions: make(map[string]*session.Session),
	}
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.handleHealth)
	app.Post("/api/upload", h.handleUpload)
	app.Post("/api/confirm-carrier", h.handleConfirmCarrier)
	app.Get("/api/carriers", h.handleCarriers)
	app.Get("/api/templates", h.handleTemplates)
	app.Get("/api/imports", h.handleImports)
	app.Post("/api/process", h.handleProcess)
	app.Post("/api/process-all", h.handleProcessAll)
	app.Get("/api/download/:filename", h.handleDownload)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": Version})
}

// handleUpload accepts a statement file, parses it, and opens a
// reconciliation session seeded with the recognition result.
func (h *Handler) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, errors.New("no file uploaded; use form field 'file'"))
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return writeError(c, fiber.StatusBadRequest,
			fmt.Errorf("invalid file type %q; allowed: CSV, XLSX, XML", ext))
	}

	if err := os.MkdirAll(h.Cfg.UploadDir, 0o755); err != nil {
		return writeError(c, fiber.StatusInternalServerError, err)
	}
	savedFilename := uuid.NewString()[:8] + "_" + filepath.Base(fh.Filename)
	savedPath := filepath.Join(h.Cfg.UploadDir, savedFilename)
	if err := c.SaveFile(fh, savedPath); err != nil {
		return writeError(c, fiber.StatusInternalServerError, err)
	}

	parsed, err := fileparse.Parse(savedPath)
	if err != nil {
		os.Remove(savedPath)
		return writeError(c, statusFor(err), err)
	}

	sess, err := session.New(h.Store, h.Registry, savedFilename, fh.Filename, parsed.Columns, parsed.RowCount)
	if err != nil {
		os.Remove(savedPath)
		return writeError(c, statusFor(err), err)
	}

	resp := fiber.Map{
		"success":        true,
		"saved_filename": savedFilename,
		"filename":       fh.Filename,
		"columns":        parsed.Columns,
		"preview":        parsed.Preview,
		"row_count":      parsed.RowCount,
	}

	recognized, err := sess.Recognize()
	if err != nil {
		// Recognition is advisory; the operator can still pick the
		// carrier by hand. The failure itself is reported, not hidden.
		resp["recognition_error"] = err.Error()
	}
	if recognized != "" {
		resp["recognized_carrier"] = recognized
		if kind, ok := h.Configs.DetectFileType(recognized, parsed.Columns); ok {
			resp["detected_file_type"] = kind
		}
	}

	if names, err := h.Store.ListKnownNames(); err == nil {
		resp["known_carriers"] = names
	} else {
		resp["recognition_error"] = err.Error()
	}
	resp["configured_carriers"] = h.Configs.ConfiguredCarriers()

	h.mu.Lock()
	h.sessions[savedFilename] = sess
	h.mu.Unlock()

	return c.JSON(resp)
}

type confirmCarrierRequest struct {
	SavedFilename string            `json:"saved_filename"`
	CarrierName   string            `json:"carrier_name"`
	FileType      models.OutputKind `json:"file_type"`
}

// handleConfirmCarrier records the operator's carrier choice, registers the
// layout, and answers whether the transformer path applies.
func (h *Handler) handleConfirmCarrier(c *fiber.Ctx) error {
	var req confirmCarrierRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, err)
	}
	if req.SavedFilename == "" || req.CarrierName == "" {
		return writeError(c, fiber.StatusBadRequest, errors.New("saved_filename and carrier_name are required"))
	}

	sess, err := h.sessionFor(req.SavedFilename)
	if err != nil {
		return writeError(c, statusFor(err), err)
	}

	if sess.State() == session.StateCarrierPending {
		if err := sess.ConfirmCarrier(req.CarrierName, req.FileType); err != nil {
			return writeError(c, statusFor(err), err)
		}
	} else if !strings.EqualFold(sess.Carrier, req.CarrierName) {
		// Changing the carrier after confirmation needs a re-upload, not
		// a silent override.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("upload already confirmed for carrier %q; re-upload to choose %q", sess.Carrier, req.CarrierName),
		})
	}
	// A failed Resolve leaves the session carrier-confirmed; calling the
	// endpoint again retries.
	if sess.State() == session.StateCarrierConfirmed {
		if err := sess.Resolve(); err != nil {
			return writeError(c, statusFor(err), err)
		}
	}

	resp := fiber.Map{
		"success":         true,
		"carrier":         sess.Carrier,
		"file_type":       sess.FileType,
		"has_transformer": sess.HasTransformer,
	}
	if sess.HasTransformer {
		resp["outputs"] = sess.Outputs
	} else {
		resp["mappings"] = sess.Mapping
	}
	return c.JSON(resp)
}

func (h *Handler) handleCarriers(c *fiber.Ctx) error {
	names, err := h.Store.ListKnownNames()
	if err != nil {
		return writeError(c, statusFor(err), err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{
		"carriers":   names,
		"configured": h.Configs.ConfiguredCarriers(),
	})
}

func (h *Handler) handleTemplates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"templates": []models.Template{
			models.PolicyAndTransactions,
			models.CommissionChargebacks,
			models.AgentAdjustments,
		},
	})
}

func (h *Handler) handleImports(c *fiber.Ctx) error {
	logs, err := h.Store.ImportHistory(c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, statusFor(err), err)
	}
	if logs == nil {
		logs = []models.ImportLog{}
	}
	return c.JSON(fiber.Map{"imports": logs})
}

type processRequest struct {
	SavedFilename  string              `json:"saved_filename"`
	CarrierName    string              `json:"carrier_name"`
	FileType       models.OutputKind   `json:"file_type"`
	ColumnMappings models.FieldMapping `json:"column_mappings"`
	OutputTypes    []models.OutputKind `json:"output_types"`
}

// handleProcess generates the export for a manually mapped file. Mappings
// in the request replace the proposed ones and are used exactly as given.
func (h *Handler) handleProcess(c *fiber.Ctx) error {
	var req processRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, err)
	}
	if req.SavedFilename == "" || req.CarrierName == "" {
		return writeError(c, fiber.StatusBadRequest, errors.New("saved_filename and carrier_name are required"))
	}

	sess, parsed, err := h.resolvedSession(req.SavedFilename, req.CarrierName, req.FileType)
	if err != nil {
		return writeError(c, statusFor(err), err)
	}
	if sess.HasTransformer {
		return writeError(c, fiber.StatusBadRequest,
			fmt.Errorf("carrier %q has a registered transformer; use process-all", sess.Carrier))
	}

	if len(req.ColumnMappings) > 0 {
		if err := sess.OverrideMapping(req.ColumnMappings); err != nil {
			return writeError(c, statusFor(err), err)
		}
	}

	started := time.Now().UTC()
	result, err := h.Exporter.GenerateMapped(sess.Carrier, req.SavedFilename,
		models.TemplateFor(sess.FileType), sess.Mapping, parsed.Table)
	if err != nil {
		h.logImport(sess, started, nil, err)
		return writeError(c, fiber.StatusInternalServerError, err)
	}

	h.logImport(sess, started, result, nil)
	if err := sess.MarkProcessed(); err != nil {
		return writeError(c, statusFor(err), err)
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"export_filename": result.Filename,
		"row_count":       result.RowCount,
		"missing_lookups": result.MissingLookups,
	})
}

// handleProcessAll runs the transformer fan-out: one export per resolved
// output view, generated in parallel, reported in declaration order.
func (h *Handler) handleProcessAll(c *fiber.Ctx) error {
	var req processRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, err)
	}
	if req.SavedFilename == "" || req.CarrierName == "" {
		return writeError(c, fiber.StatusBadRequest, errors.New("saved_filename and carrier_name are required"))
	}

	sess, parsed, err := h.resolvedSession(req.SavedFilename, req.CarrierName, req.FileType)
	if err != nil {
		return writeError(c, statusFor(err), err)
	}
	if !sess.HasTransformer {
		return writeError(c, fiber.StatusBadRequest,
			fmt.Errorf("carrier %q has no registered transformer; use process with column mappings", sess.Carrier))
	}

	tr, ok := h.Registry.Lookup(sess.Carrier)
	if !ok {
		err := &models.TransformerUnavailableError{Carrier: sess.Carrier}
		return writeError(c, statusFor(err), err)
	}

	specs := sess.Outputs
	if len(req.OutputTypes) > 0 {
		specs = filterSpecs(specs, req.OutputTypes)
	}
	if len(specs) == 0 {
		return c.JSON(fiber.Map{"success": true, "results": []export.Result{}, "row_count": 0})
	}

	started := time.Now().UTC()
	results := h.Exporter.GenerateAll(tr, specs, sess.Carrier, req.SavedFilename, parsed.Table)

	total := 0
	failed := false
	for i := range results {
		total += results[i].RowCount
		if results[i].Error != "" {
			failed = true
		}
		h.logImport(sess, started, &results[i], nil)
	}

	if failed {
		// Session stays resolved so the operator can retry the failed
		// views; successful artifacts are still reported.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":   false,
			"error":     "one or more outputs failed to generate",
			"results":   results,
			"row_count": total,
		})
	}

	if err := sess.MarkProcessed(); err != nil {
		return writeError(c, statusFor(err), err)
	}
	return c.JSON(fiber.Map{"success": true, "results": results, "row_count": total})
}

func (h *Handler) handleDownload(c *fiber.Ctx) error {
	filename := filepath.Base(c.Params("filename"))
	path := filepath.Join(h.Cfg.ExportDir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		nf := &models.NotFoundError{What: fmt.Sprintf("export %q", filename)}
		return writeError(c, fiber.StatusNotFound, nf)
	}
	return c.Download(path, filename)
}

// sessionFor fetches the live session for a saved upload.
func (h *Handler) sessionFor(savedFilename string) (*session.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[savedFilename]; ok {
		return sess, nil
	}
	return nil, &models.NotFoundError{What: fmt.Sprintf("upload %q", savedFilename)}
}

// resolvedSession returns a session driven to the resolved state plus the
// parsed file rows. If the in-memory session is gone (restart) but the
// upload is still on disk, the session is rebuilt from the request's
// carrier choice.
func (h *Handler) resolvedSession(savedFilename, carrierName string, fileType models.OutputKind) (*session.Session, *fileparse.ParsedFile, error) {
	savedPath := filepath.Join(h.Cfg.UploadDir, filepath.Base(savedFilename))
	if _, err := os.Stat(savedPath); os.IsNotExist(err) {
		return nil, nil, &models.NotFoundError{What: fmt.Sprintf("upload %q", savedFilename)}
	}

	parsed, err := fileparse.Parse(savedPath)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	sess, ok := h.sessions[savedFilename]
	h.mu.Unlock()

	if !ok {
		sess, err = session.New(h.Store, h.Registry, savedFilename, savedFilename, parsed.Columns, parsed.RowCount)
		if err != nil {
			return nil, nil, err
		}
		if _, err := sess.Recognize(); err != nil {
			return nil, nil, err
		}
		h.mu.Lock()
		h.sessions[savedFilename] = sess
		h.mu.Unlock()
	}

	if sess.State() == session.StateCarrierPending {
		if err := sess.ConfirmCarrier(carrierName, fileType); err != nil {
			return nil, nil, err
		}
	} else if !strings.EqualFold(sess.Carrier, carrierName) {
		return nil, nil, &models.ValidationError{
			Msg: fmt.Sprintf("upload already confirmed for carrier %q, not %q", sess.Carrier, carrierName),
		}
	}
	if sess.State() == session.StateCarrierConfirmed {
		if err := sess.Resolve(); err != nil {
			return nil, nil, err
		}
	}
	return sess, parsed, nil
}

func (h *Handler) logImport(sess *session.Session, started time.Time, result *export.Result, genErr error) {
	entry := models.ImportLog{
		BatchID:       uuid.NewString()[:8],
		Carrier:       sess.Carrier,
		FileName:      sess.OriginalFilename,
		FileType:      sess.FileType,
		Source:        "api",
		RowsProcessed: sess.RowCount,
		Status:        "completed",
		StartedAt:     started,
		CompletedAt:   time.Now().UTC(),
	}
	if result != nil {
		entry.RowsExported = result.RowCount
		if result.Kind != "" {
			entry.FileType = result.Kind
		}
		if result.Error != "" {
			entry.Status = "failed"
			entry.Error = result.Error
		}
	}
	if genErr != nil {
		entry.Status = "failed"
		entry.Error = genErr.Error()
	}
	if err := h.Store.LogImport(entry); err != nil {
		log.Printf("import log write failed: %v", err)
	}
}

func filterSpecs(specs []models.OutputSpec, kinds []models.OutputKind) []models.OutputSpec {
	want := make(map[models.OutputKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := []models.OutputSpec{}
	for _, s := range specs {
		if want[s.Kind] {
			out = append(out, s)
		}
	}
	return out
}

func statusFor(err error) int {
	var verr *models.ValidationError
	var nf *models.NotFoundError
	var tu *models.TransformerUnavailableError
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest
	case errors.As(err, &nf):
		return fiber.StatusNotFound
	case errors.As(err, &tu):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
