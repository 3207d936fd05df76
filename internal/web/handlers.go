package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/db"
	"github.com/banterhq/banter/internal/errors"
	"github.com/banterhq/banter/internal/thread"
)

// Handlers contains HTTP route handlers for the thread preview UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	origin   string
	sessions *thread.Manager
	renderer *Renderer
}

// HandleThread handles GET /thread — render a page's comment thread.
func (h *Handlers) HandleThread(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		uri = "/"
	}

	sess, err := h.sessions.Session(r.Context(), uri)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "thread", h.threadPage(sess))
}

// HandleRefresh handles POST /thread/refresh — re-fetch from the server.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	uri := r.FormValue("uri")
	if uri == "" {
		uri = "/"
	}

	if _, err := h.sessions.Refresh(r.Context(), uri); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	redirectToThread(w, r, uri, "")
}

// HandleReveal handles POST /thread/reveal — show one more page of comments.
func (h *Handlers) HandleReveal(w http.ResponseWriter, r *http.Request) {
	uri := r.FormValue("uri")
	sess, err := h.sessions.Session(r.Context(), uri)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	scope := thread.TopLevelScope()
	if parent := r.FormValue("parent"); parent != "" {
		id, err := strconv.ParseInt(parent, 10, 64)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("parent must be a comment id"))
			return
		}
		scope = thread.RepliesScope(comment.ID(id))
	}
	sess.RevealMore(scope)

	redirectToThread(w, r, uri, "")
}

// HandleToggleForm handles POST /thread/form — open or close a reply form.
func (h *Handlers) HandleToggleForm(w http.ResponseWriter, r *http.Request) {
	uri := r.FormValue("uri")
	sess, err := h.sessions.Session(r.Context(), uri)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("id must be a comment id"))
		return
	}
	sess.ToggleForm(comment.ID(id))

	redirectToThread(w, r, uri, fmt.Sprintf("comment-%d", id))
}

// HandlePost handles POST /thread/comments — submit a comment or reply.
func (h *Handlers) HandlePost(w http.ResponseWriter, r *http.Request) {
	uri := r.FormValue("uri")
	sess, err := h.sessions.Session(r.Context(), uri)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	formID := comment.RootFormID
	if replyTo := r.FormValue("reply_to"); replyTo != "" {
		id, err := strconv.ParseInt(replyTo, 10, 64)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("reply_to must be a comment id"))
			return
		}
		formID = comment.ID(id)
	}

	var email *string
	if v := r.FormValue("email"); v != "" {
		email = &v
	}

	author := r.FormValue("author")
	body := r.FormValue("body")

	out, err := sess.Submit(r.Context(), thread.SubmitInput{
		FormID: formID,
		Author: author,
		Body:   body,
		Email:  email,
	})
	if err != nil {
		// Validation problems re-render the page with the draft preserved
		// and the offending field named; everything else is a full error.
		if errors.Is(err, errors.ErrValidation) {
			page := h.threadPage(sess)
			page.FormError = err.(*errors.BanterError).Message
			page.FocusTarget = errors.FocusTarget(err)
			page.DraftAuthor = author
			page.DraftBody = body
			h.renderer.renderPageStatus(w, http.StatusUnprocessableEntity, "thread", page)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if _, err := db.SaveIdentity(h.db, h.origin, sess.AuthorName(), email); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	redirectToThread(w, r, uri, fmt.Sprintf("comment-%d", out.Comment.ID))
}

// HandlePreview handles POST /preview — render a markdown draft to HTML.
// The fragment lets the page show what the server-side renderer will do
// with a comment before it is posted.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	body := r.FormValue("body")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<div class="comment-preview">%s</div>`, renderMarkdown(body))
}

// threadPage builds the template data for a session's current view.
func (h *Handlers) threadPage(sess *thread.Session) ThreadPageData {
	cfg := sess.Config()
	page := ThreadPageData{
		PageData: PageData{
			Title:   "Comments — " + sess.Path(),
			Version: h.renderer.version,
		},
		URI:          sess.Path(),
		State:        sess.State().String(),
		Moderation:   cfg.Moderation,
		RootFormOpen: sess.FormVisible(comment.RootFormID),
		Author:       h.authorPrefill(sess),
	}

	all := sess.Comments()
	topLevel, hasMore := sess.VisibleTopLevel()
	for _, c := range topLevel {
		replies, repliesMore := sess.VisibleReplies(c.ID)
		cd := commentData(c, sess.FormVisible(c.ID))
		for _, rep := range replies {
			cd.Replies = append(cd.Replies, commentData(rep, false))
		}
		if repliesMore {
			cd.HiddenReplies = countReplies(all, c.ID) - len(replies)
		}
		page.Comments = append(page.Comments, cd)
	}
	if hasMore {
		page.HiddenTopLevel = countTopLevel(all) - len(topLevel)
	}

	return page
}

// authorPrefill picks the author name to prefill the forms with: the name
// used in this session, falling back to the stored identity.
func (h *Handlers) authorPrefill(sess *thread.Session) string {
	if name := sess.AuthorName(); name != "" {
		return name
	}
	ident, err := db.GetIdentity(h.db, h.origin)
	if err != nil {
		return ""
	}
	return ident.Author
}

// commentData converts one comment. Bodies arrive server-rendered, so
// they are trusted HTML rather than markdown.
func commentData(c comment.Comment, formOpen bool) CommentData {
	return CommentData{
		ID:        c.ID,
		Author:    c.Author,
		BodyHTML:  template.HTML(c.Body),
		CreatedAt: c.CreatedAt,
		Confirmed: c.Confirmed,
		FormOpen:  formOpen,
	}
}

func countTopLevel(all []comment.Comment) int {
	n := 0
	for _, c := range all {
		if !c.IsReply() {
			n++
		}
	}
	return n
}

func countReplies(all []comment.Comment, parent comment.ID) int {
	n := 0
	for _, c := range all {
		if c.IsReply() && *c.ReplyTo == parent {
			n++
		}
	}
	return n
}

// redirectToThread sends the browser back to the thread page, optionally
// jumping to a fragment.
func redirectToThread(w http.ResponseWriter, r *http.Request, uri, fragment string) {
	target := "/thread?uri=" + url.QueryEscape(uri)
	if fragment != "" {
		target += "#" + fragment
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
