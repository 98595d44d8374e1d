// Package web serves the upload forms and the JSON API for training and testing.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"automl/internal/config"
	"automl/internal/data"
	"automl/internal/history"
	"automl/internal/models"
	"automl/internal/persistence"
	"automl/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	kindModels      = "models"
	kindPredictions = "predictions"
	kindPlots       = "plots"
)

// Handler handles HTTP requests
type Handler struct {
	cfg     *config.Config
	trainer *pipeline.Trainer
	tester  *pipeline.Tester
	history *history.Store
	logger  *zap.Logger
}

func NewHandler(cfg *config.Config, trainer *pipeline.Trainer, tester *pipeline.Tester, store *history.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		trainer: trainer,
		tester:  tester,
		history: store,
		logger:  logger.Named("web"),
	}
}

// NewRouter builds a gin engine with recovery, request logging, upload limits and the
// handler's routes.
func NewRouter(h *Handler) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger), h.limitUploads())
	r.MaxMultipartMemory = h.maxUploadBytes()

	if err := h.RegisterRoutes(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterRoutes registers all routes and the HTML templates.
func (h *Handler) RegisterRoutes(r *gin.Engine) error {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"base":    filepath.Base,
		"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
		"num": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return strconv.FormatFloat(*v, 'f', 4, 64)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/train") })
	r.GET("/train", h.TrainPage)
	r.POST("/train", h.TrainForm)
	r.GET("/test", h.TestPage)
	r.POST("/test", h.TestForm)
	r.GET("/profile", h.ProfilePage)
	r.POST("/profile", h.ProfileForm)

	api := r.Group("/api/v1")
	{
		api.POST("/train", h.TrainAPI)
		api.POST("/test", h.TestAPI)
		api.POST("/profile", h.ProfileAPI)
		api.GET("/models", h.ListModels)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
	}

	r.GET("/artifacts/:kind/:name", h.Artifact)
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *Handler) maxUploadBytes() int64 {
	return h.cfg.Server.MaxUploadMB << 20
}

func (h *Handler) limitUploads() gin.HandlerFunc {
	limit := h.maxUploadBytes()
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, persistence.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, data.ErrFileFormat),
		errors.Is(err, data.ErrColumnNotFound),
		errors.Is(err, data.ErrUnsupportedStrategy),
		errors.Is(err, data.ErrInvalidDataset),
		errors.Is(err, models.ErrUnknownModel),
		errors.Is(err, models.ErrCapability),
		errors.Is(err, persistence.ErrInvalidArtifact),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// readDataset parses the CSV uploaded under field.
func readDataset(c *gin.Context, field string) (*data.Dataset, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: missing %q upload", errBadRequest, field)
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	ds, err := data.LoadCSV(file)
	if err != nil {
		return nil, "", err
	}
	return ds, filepath.Base(header.Filename), nil
}

// resolveModel returns the path of the model to test and a cleanup func. The model is either
// an uploaded artifact (field "model") or the name of one in the models directory
// (field "model_name").
func (h *Handler) resolveModel(c *gin.Context) (string, func(), error) {
	noop := func() {}

	if header, err := c.FormFile("model"); err == nil {
		path, err := saveUpload(header)
		if err != nil {
			return "", noop, err
		}
		return path, func() { os.Remove(path) }, nil
	}

	name := filepath.Base(c.PostForm("model_name"))
	if name == "." || name == string(filepath.Separator) {
		return "", noop, fmt.Errorf("%w: missing \"model\" upload or \"model_name\"", errBadRequest)
	}
	return filepath.Join(h.cfg.Paths.Models, name), noop, nil
}

func saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*"+persistence.ModelExt)
	if err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (h *Handler) runTrain(c *gin.Context) (*pipeline.TrainingResult, error) {
	ds, name, err := readDataset(c, "file")
	if err != nil {
		return nil, err
	}

	opts := pipeline.TrainOptions{
		TargetColumn: strings.TrimSpace(c.PostForm("target")),
		ModelKey:     strings.TrimSpace(c.PostForm("model")),
		DatasetName:  name,
	}
	if v := c.PostForm("cv_folds"); v != "" {
		folds, err := strconv.Atoi(v)
		if err != nil || folds < 0 || folds == 1 {
			return nil, fmt.Errorf("%w: cv_folds must be 0 or at least 2", errBadRequest)
		}
		opts.CVFolds = folds
	}

	return h.trainer.Train(c.Request.Context(), ds, opts)
}

func (h *Handler) runTest(c *gin.Context) (*pipeline.TestResult, error) {
	ds, name, err := readDataset(c, "file")
	if err != nil {
		return nil, err
	}

	modelPath, cleanup, err := h.resolveModel(c)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	opts := pipeline.TestOptions{
		TargetColumn:       strings.TrimSpace(c.PostForm("target")),
		DatasetName:        name,
		ReuseTrainingState: c.PostForm("reuse_training_state") == "on" || c.PostForm("reuse_training_state") == "true",
	}
	return h.tester.Test(c.Request.Context(), ds, modelPath, opts)
}

// TrainAPI trains a model from a multipart upload.
// POST /api/v1/train
func (h *Handler) TrainAPI(c *gin.Context) {
	result, err := h.runTrain(c)
	if err != nil {
		h.logger.Warn("train request failed", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// TestAPI applies a model to a multipart upload.
// POST /api/v1/test
func (h *Handler) TestAPI(c *gin.Context) {
	result, err := h.runTest(c)
	if err != nil {
		h.logger.Warn("test request failed", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) runProfile(c *gin.Context) (*data.Profile, string, error) {
	ds, name, err := readDataset(c, "file")
	if err != nil {
		return nil, "", err
	}
	return data.NewDataValidator().Profile(ds), name, nil
}

// ProfileAPI summarises an uploaded CSV without training.
// POST /api/v1/profile
func (h *Handler) ProfileAPI(c *gin.Context) {
	profile, _, err := h.runProfile(c)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) ProfilePage(c *gin.Context) {
	c.HTML(http.StatusOK, "profile.html", gin.H{})
}

func (h *Handler) ProfileForm(c *gin.Context) {
	profile, name, err := h.runProfile(c)
	if err != nil {
		c.HTML(statusFor(err), "profile.html", gin.H{"Error": err.Error()})
		return
	}
	c.HTML(http.StatusOK, "profile.html", gin.H{"Profile": profile, "Dataset": name})
}

func (h *Handler) TrainPage(c *gin.Context) {
	c.HTML(http.StatusOK, "train.html", gin.H{
		"Models":  models.Available(),
		"Default": pipeline.DefaultModel,
	})
}

func (h *Handler) TrainForm(c *gin.Context) {
	result, err := h.runTrain(c)
	if err != nil {
		h.logger.Warn("train request failed", zap.Error(err))
		c.HTML(statusFor(err), "train.html", gin.H{
			"Models":  models.Available(),
			"Default": pipeline.DefaultModel,
			"Error":   err.Error(),
		})
		return
	}
	c.HTML(http.StatusOK, "train_result.html", gin.H{
		"Result":      result,
		"MetricsJSON": prettyJSON(result.Metrics),
	})
}

func (h *Handler) TestPage(c *gin.Context) {
	c.HTML(http.StatusOK, "test.html", gin.H{"Artifacts": h.listModelArtifacts()})
}

func (h *Handler) TestForm(c *gin.Context) {
	result, err := h.runTest(c)
	if err != nil {
		h.logger.Warn("test request failed", zap.Error(err))
		c.HTML(statusFor(err), "test.html", gin.H{
			"Artifacts": h.listModelArtifacts(),
			"Error":     err.Error(),
		})
		return
	}
	view := gin.H{"Result": result}
	if result.Metrics != nil {
		view["MetricsJSON"] = prettyJSON(result.Metrics)
	}
	c.HTML(http.StatusOK, "test_result.html", view)
}

func prettyJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(raw)
}

// listModelArtifacts returns the saved model file names, newest first.
func (h *Handler) listModelArtifacts() []string {
	entries, err := os.ReadDir(h.cfg.Paths.Models)
	if err != nil {
		return nil
	}
	type artifact struct {
		name    string
		modTime time.Time
	}
	var found []artifact
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != persistence.ModelExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, artifact{e.Name(), info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].modTime.After(found[j].modTime) })

	names := make([]string, len(found))
	for i, a := range found {
		names[i] = a.name
	}
	return names
}

// ListModels returns the model registry.
// GET /api/v1/models
func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":    models.Available(),
		"default":   pipeline.DefaultModel,
		"artifacts": h.listModelArtifacts(),
	})
}

// ListRuns returns the run history, newest first.
// GET /api/v1/runs?limit=N
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.history.List(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":    runs,
		"count":   len(runs),
		"enabled": h.history.Enabled(),
	})
}

// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.history.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.logger.Error("Failed to get run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// Artifact serves a file from one of the output directories.
// GET /artifacts/:kind/:name
func (h *Handler) Artifact(c *gin.Context) {
	dirs := map[string]string{
		kindModels:      h.cfg.Paths.Models,
		kindPredictions: h.cfg.Paths.Predictions,
		kindPlots:       h.cfg.Paths.Plots,
	}
	dir, ok := dirs[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown artifact kind"})
		return
	}

	name := filepath.Base(c.Param("name"))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid artifact name"})
		return
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Artifact not found"})
		return
	}

	if c.Param("kind") == kindPlots {
		c.File(path)
		return
	}
	c.FileAttachment(path, name)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"history": h.history.Enabled(),
	})
}
