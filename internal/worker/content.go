package worker

import (
	"fmt"
	"html"
	"strings"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
)

// Content is the rendered notification for one event. It is computed once and
// reused for every recipient and every channel.
type Content struct {
	Category string
	Type     string
	Title    string
	Body     string
	// URL is the in-app path, e.g. /blog/launch.
	URL      string
	Metadata map[string]string
	// Emailable marks categories that also go out by e-mail.
	Emailable bool
}

// RenderBlogPublished renders a new blog post.
func RenderBlogPublished(e models.BlogPublished) Content {
	body := strings.TrimSpace(e.Excerpt)
	if body == "" {
		body = constants.DefaultBlogBody
	}
	slug := e.Slug
	if slug == "" {
		slug = e.ID
	}
	return Content{
		Category: constants.CategoryBlog,
		Type:     constants.NotificationTypeBlogPost,
		Title:    "New blog post: " + e.Title,
		Body:     body,
		URL:      "/blog/" + slug,
		Metadata: map[string]string{"blogId": e.ID},
	}
}

// RenderBrandingKitReady renders a finished branding kit.
func RenderBrandingKitReady(e models.BrandingKitReady) Content {
	name := e.Name
	if name == "" {
		name = "Your branding kit"
	}
	return Content{
		Category:  constants.CategoryBrandingKit,
		Type:      constants.NotificationTypeBrandingKit,
		Title:     "Your branding kit is ready!",
		Body:      name + " is now available to download.",
		URL:       "/branding-kits/" + e.KitID,
		Metadata:  map[string]string{"kitId": e.KitID},
		Emailable: true,
	}
}

// RenderTaskMessage renders a chat message for the sender's counterpart.
func RenderTaskMessage(e models.TaskMessageAppended) Content {
	from := "customer"
	if e.Sender == constants.SenderExpert {
		from = "expert"
	}

	body := Preview(e.Content, constants.TaskMessagePreview)
	if e.Kind == constants.MessageKindFile {
		body = "Sent you a file"
	}

	return Content{
		Category: constants.CategoryTaskMessage,
		Type:     constants.NotificationTypeTaskMessage,
		Title:    "New message from your " + from,
		Body:     body,
		URL:      "/tasks/" + e.TaskID,
		Metadata: map[string]string{
			"taskId":    e.TaskID,
			"taskTitle": e.TaskTitle,
			"sender":    e.Sender,
		},
		Emailable: true,
	}
}

// Preview truncates s to limit runes and appends "..." when it was longer.
func Preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Link turns the in-app path into an absolute URL.
func (c Content) Link(baseURL string) string {
	if baseURL == "" {
		return c.URL
	}
	return strings.TrimRight(baseURL, "/") + c.URL
}

// Payload is the push notification for this content.
func (c Content) Payload(baseURL string) models.PushPayload {
	data := make(map[string]string, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		data[k] = v
	}
	data["type"] = c.Type
	return models.PushPayload{
		Title: c.Title,
		Body:  c.Body,
		Link:  c.Link(baseURL),
		Data:  data,
	}
}

// HistoryEntry is the in-app history record for this content.
func (c Content) HistoryEntry() models.HistoryEntry {
	meta := make(map[string]interface{}, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return models.HistoryEntry{
		Title:    c.Title,
		Body:     c.Body,
		Type:     c.Type,
		URL:      c.URL,
		Metadata: meta,
	}
}

// EmailHTML renders the e-mail body for this content.
func (c Content) EmailHTML(baseURL string) string {
	return fmt.Sprintf(`<html><body style="font-family:Arial,sans-serif">
<h2>%s</h2>
<p>%s</p>
<p><a href="%s">Open in RapidWorks</a></p>
</body></html>`,
		html.EscapeString(c.Title),
		html.EscapeString(c.Body),
		html.EscapeString(c.Link(baseURL)),
	)
}
