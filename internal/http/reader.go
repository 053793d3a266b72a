package http

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/preferences"
)

const readerTemplateName = "reader"

// readerTemplate is the page the PDF viewer client boots from.
const readerTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
html, body { margin: 0; height: 100%; }
iframe { border: 0; width: 100%; height: 100%; }
</style>
</head>
<body data-book-id="{{.BookID}}" data-reader-mode="{{.ReaderMode}}" data-pages="{{.Pages}}">
<iframe id="reader" src="{{.PDFURL}}" title="{{.Title}}"></iframe>
<noscript><a href="{{.PDFURL}}">Download {{.Title}}</a></noscript>
</body>
</html>
`

// readerTemplates parses the HTML templates served by the router.
func readerTemplates() *template.Template {
	return template.Must(template.New(readerTemplateName).Parse(readerTemplate))
}

// ReaderPage is the data rendered into the reader shell.
type ReaderPage struct {
	BookID     string
	Title      string
	PDFURL     string
	ReaderMode string
	Pages      int
}

// ReaderController renders the HTML shell of the PDF viewer.
type ReaderController struct {
	catalog *catalog.Service
	prefs   *preferences.Service
	log     *logger.Logger
}

// NewReaderController creates the reader controller. prefs may be nil, in
// which case every page uses the default reader mode.
func NewReaderController(catalog *catalog.Service, prefs *preferences.Service, log *logger.Logger) *ReaderController {
	return &ReaderController{catalog: catalog, prefs: prefs, log: logger.OrNop(log)}
}

// Reader renders the viewer page for a book. Signed-in callers get their
// stored reader mode.
// GET /reader/:bookId
func (rc *ReaderController) Reader(c *gin.Context) {
	book, url, err := rc.catalog.ReaderURL(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		respondError(c, rc.log, err)
		return
	}

	c.HTML(http.StatusOK, readerTemplateName, ReaderPage{
		BookID:     book.ID,
		Title:      book.Title,
		PDFURL:     url,
		ReaderMode: rc.readerMode(c),
		Pages:      book.Pages,
	})
}

func (rc *ReaderController) readerMode(c *gin.Context) string {
	mode := preferences.Default(entities.PreferenceKeyReaderMode)
	identity := auth.GetIdentity(c)
	if identity == nil || rc.prefs == nil {
		return mode
	}

	setting, err := rc.prefs.Get(c.Request.Context(), identity.Actor(), identity.UserID, entities.PreferenceKeyReaderMode)
	if err != nil {
		rc.log.Warn("failed to load reader mode", "user_id", identity.UserID, "error", err)
		return mode
	}
	return setting.Value
}
