package aplus

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/history"
	"github.com/xalatechnologies/aplus/markdown"
	"github.com/xalatechnologies/aplus/registry"
	"github.com/xalatechnologies/aplus/storage"
	"github.com/xalatechnologies/aplus/templates"
)

// WarningsHeader lists advisory content problems of a render or save.
const WarningsHeader = "X-Content-Warnings"

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", a.handleHealth)
	e.GET(storage.DownloadPrefix+":bucket/*", a.handleDownload)

	api := e.Group("/api")
	api.GET("/specs", a.handleSpecs)
	api.GET("/templates", a.handleTemplates)
	api.GET("/templates/:id", a.handleTemplate)
	api.POST("/render", a.handleRender)

	owned := api.Group("", requireOwner)
	owned.GET("/documents", a.handleListDocuments)
	owned.GET("/documents/:id", a.handleGetDocument)
	owned.PUT("/documents/:id", a.handleSaveDocument)
	owned.DELETE("/documents/:id", a.handleDeleteDocument)
	owned.POST("/documents/:id/export", a.handleExport)
	owned.POST("/documents/:id/images", a.handleDocumentImageUpload)
	owned.POST("/images", a.handleImageUpload)
	owned.GET("/exports", a.handleExports)
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "templates": a.Library.Len()})
}

func (a *App) handleSpecs(c echo.Context) error {
	specs := registry.All()
	out := make([]SpecView, 0, len(specs))
	for _, s := range specs {
		out = append(out, specView(s, a.Library))
	}
	return c.JSON(http.StatusOK, out)
}

func (a *App) handleTemplates(c echo.Context) error {
	if spec := c.QueryParam("spec"); spec != "" {
		if _, ok := registry.Lookup(spec); !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown spec "+spec)
		}
		return c.JSON(http.StatusOK, a.Library.ForSpec(spec))
	}
	return c.JSON(http.StatusOK, a.Library.All())
}

func (a *App) handleTemplate(c echo.Context) error {
	t, ok := a.Library.Lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown template "+c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

func (a *App) handleRender(c echo.Context) error {
	var req RenderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	format, err := compositor.ParseFormat(req.Format)
	if err != nil {
		return err
	}

	var tpl templates.Template
	var ok bool
	switch {
	case req.TemplateID != "":
		tpl, ok = a.Library.Lookup(req.TemplateID)
	case req.SpecID != "":
		tpl, ok = a.Library.Pick(req.SpecID)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no template for request")
	}

	texts := make(map[string]string)
	if req.Content != nil {
		texts = binder.Bind(tpl, *req.Content)
	}
	for id, s := range req.Texts {
		texts[id] = s
	}

	owner := strings.TrimSpace(c.Request().Header.Get(OwnerHeader))
	images, warnings := a.gatherImages(c.Request().Context(), owner, tpl, req)
	if spec, ok := registry.Lookup(tpl.SpecID); ok {
		for _, v := range spec.Check(roleTexts(tpl, texts), len(images)) {
			warnings = append(warnings, v.String())
		}
	}

	raw, err := a.compositor.RenderModule(tpl, images, texts, req.Theme)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	data, err := compositor.Convert(raw, format)
	if err != nil {
		return err
	}

	h := c.Response().Header()
	h.Set("X-Template-ID", tpl.ID)
	setWarnings(c, warnings)
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

// gatherImages fetches the images of a render request. Explicit slot
// assignments come first; ImageURLs fill the remaining slots in order.
// Failures, and locators outside the owner's uploads, become warnings and
// leave the slot empty.
func (a *App) gatherImages(ctx context.Context, owner string, tpl templates.Template, req RenderRequest) (map[string][]byte, []string) {
	urls := make(map[string]string)
	queue := req.ImageURLs
	for _, s := range tpl.ImageSlots() {
		if u := req.Images[s.ID]; u != "" {
			urls[s.ID] = u
			continue
		}
		if len(queue) > 0 {
			urls[s.ID] = queue[0]
			queue = queue[1:]
		}
	}

	images := make(map[string][]byte, len(urls))
	var warnings []string
	for _, s := range tpl.ImageSlots() {
		u, ok := urls[s.ID]
		if !ok {
			continue
		}
		if !a.sourceAllowed(owner, u) {
			a.Logger.Warn("render image refused", "slot", s.ID, "owner", owner, "url", u)
			warnings = append(warnings, fmt.Sprintf("%s: image unavailable", s.ID))
			continue
		}
		fctx, cancel := context.WithTimeout(ctx, a.Config.FetchTimeout)
		b, err := a.fetcher.Fetch(fctx, u)
		cancel()
		if err == nil {
			err = compositor.CheckImage(b)
		}
		if err != nil {
			a.Logger.Warn("render image skipped", "slot", s.ID, "url", u, "err", err)
			warnings = append(warnings, fmt.Sprintf("%s: image unavailable", s.ID))
			continue
		}
		images[s.ID] = b
	}
	return images, warnings
}

// roleTexts keys slot texts by the role of their slot.
func roleTexts(tpl templates.Template, texts map[string]string) map[registry.Role]string {
	out := make(map[registry.Role]string)
	for _, s := range tpl.TextSlots() {
		if s.Role == registry.RoleStatic {
			continue
		}
		if t := texts[s.ID]; t != "" {
			out[s.Role] = t
		}
	}
	return out
}

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ", ";", ",")

func setWarnings(c echo.Context, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	clean := make([]string, len(warnings))
	for i, w := range warnings {
		clean[i] = headerSafe.Replace(w)
	}
	c.Response().Header().Set(WarningsHeader, strings.Join(clean, "; "))
}

func (a *App) handleListDocuments(c echo.Context) error {
	docs, err := a.Store.ListDocuments(c.Request().Context(), ownerOf(c))
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []DocumentSummary{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (a *App) handleGetDocument(c echo.Context) error {
	doc, err := a.Store.GetDocument(c.Request().Context(), ownerOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (a *App) handleSaveDocument(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document id required")
	}
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sources := markdown.FilterEmpty(req.SourceImages)
	for _, src := range sources {
		if !a.sourceAllowed(ownerOf(c), src) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("source image %q is not accessible", src))
		}
	}
	doc := &exporter.Document{
		ID:           id,
		OwnerID:      ownerOf(c),
		Title:        strings.TrimSpace(req.Title),
		Theme:        req.Theme,
		Modules:      req.Modules,
		SourceImages: sources,
	}
	if err := a.Store.SaveDocument(c.Request().Context(), doc); err != nil {
		return err
	}
	setWarnings(c, a.documentWarnings(doc))
	return c.JSON(http.StatusOK, doc)
}

// documentWarnings reports modules that will be skipped or whose copy falls
// outside the bounds of their spec.
func (a *App) documentWarnings(doc *exporter.Document) []string {
	var out []string
	for i, m := range doc.Modules {
		spec, ok := registry.Lookup(m.Type)
		if !ok {
			out = append(out, fmt.Sprintf("module %d: unknown type %q", i+1, m.Type))
			continue
		}
		if m.TemplateID != "" {
			if _, ok := a.Library.Lookup(m.TemplateID); !ok {
				out = append(out, fmt.Sprintf("module %d: unknown template %q, using default", i+1, m.TemplateID))
			}
		}
		for _, v := range spec.Check(m.Content.Texts(), len(doc.SourceImages)) {
			out = append(out, fmt.Sprintf("module %d: %s", i+1, v))
		}
	}
	return out
}

func (a *App) handleDeleteDocument(c echo.Context) error {
	if err := a.Store.DeleteDocument(c.Request().Context(), ownerOf(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleExport(c echo.Context) error {
	owner := ownerOf(c)
	format, err := compositor.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	if !a.limiter.Allow(owner) {
		wait := a.limiter.RetryAfter(owner)
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		return echo.NewHTTPError(http.StatusTooManyRequests, "export limit reached")
	}

	res, err := a.Exporter.Export(c.Request().Context(), exporter.Request{
		DocumentID: c.Param("id"),
		OwnerID:    owner,
		Format:     format,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ExportResponse{
		DownloadURL:   res.DownloadURL,
		FileSizeBytes: res.FileSizeBytes,
		ModuleCount:   res.ModuleCount,
		Requested:     res.Requested,
		Failures:      res.Failures,
	})
}

func (a *App) handleExports(c echo.Context) error {
	if a.History == nil {
		return echo.NewHTTPError(http.StatusNotFound, "export history is disabled")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := a.History.List(c.Request().Context(), ownerOf(c), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (a *App) handleDownload(c echo.Context) error {
	local, ok := a.Objects.(*storage.Local)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	bucket, p := c.Param("bucket"), c.Param("*")
	q := c.QueryParams()
	if err := local.Verify(bucket, p, q.Get("expires"), q.Get("sig")); err != nil {
		return err
	}
	data, err := local.Get(c.Request().Context(), bucket, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return err
	}
	ct := contentType(path.Ext(p))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", path.Base(p)))
	return c.Blob(http.StatusOK, ct, data)
}

func contentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".zip":
		return "application/zip"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}
