package api

import (
	"strings"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
)

type ValidateEmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type ValidateEmailResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type ChatRequest struct {
	Messages []integrations.ChatMessage `json:"messages" validate:"required,min=1,max=50,dive"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ExtractRequest struct {
	Text   string   `json:"text" validate:"required,max=20000"`
	Fields []string `json:"fields" validate:"required,min=1,max=30,dive,required"`
}

type ExtractResponse struct {
	Fields map[string]string `json:"fields"`
}

type TestNotificationRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Title  string `json:"title" validate:"omitempty,max=120"`
	Body   string `json:"body" validate:"omitempty,max=500"`
	DryRun bool   `json:"dryRun"`
}

type TestNotificationResponse struct {
	Tokens   int                `json:"tokens"`
	Result   models.SendResult  `json:"result"`
	Recorded bool               `json:"recorded"`
	Payload  models.PushPayload `json:"payload"`
}

type FormResponse struct {
	Success  bool   `json:"success"`
	RecordID string `json:"recordId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Form is a validated submission of one public form.
type Form interface {
	// Fields are the Airtable columns of the record.
	Fields() map[string]interface{}
	// Contact is the submitter's email.
	Contact() string
	Summary() string
}

type ServiceForm struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company" validate:"omitempty,max=200"`
	Service string `json:"service" validate:"required,max=200"`
	Budget  string `json:"budget" validate:"omitempty,max=100"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

func (f *ServiceForm) Fields() map[string]interface{} {
	return compact(map[string]interface{}{
		"Name":    f.Name,
		"Email":   f.Email,
		"Company": f.Company,
		"Service": f.Service,
		"Budget":  f.Budget,
		"Message": f.Message,
	})
}

func (f *ServiceForm) Contact() string { return f.Email }
func (f *ServiceForm) Summary() string { return f.Service }

type WebinarForm struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company" validate:"omitempty,max=200"`
	Webinar string `json:"webinar" validate:"required,max=200"`
}

func (f *WebinarForm) Fields() map[string]interface{} {
	return compact(map[string]interface{}{
		"Name":    f.Name,
		"Email":   f.Email,
		"Company": f.Company,
		"Webinar": f.Webinar,
	})
}

func (f *WebinarForm) Contact() string { return f.Email }
func (f *WebinarForm) Summary() string { return f.Webinar }

type PartnerForm struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company" validate:"required,max=200"`
	Website string `json:"website" validate:"omitempty,url"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

func (f *PartnerForm) Fields() map[string]interface{} {
	return compact(map[string]interface{}{
		"Name":    f.Name,
		"Email":   f.Email,
		"Company": f.Company,
		"Website": f.Website,
		"Message": f.Message,
	})
}

func (f *PartnerForm) Contact() string { return f.Email }
func (f *PartnerForm) Summary() string { return f.Company }

type ExpertForm struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email"`
	Expertise string `json:"expertise" validate:"required,max=500"`
	LinkedIn  string `json:"linkedin" validate:"omitempty,url"`
	Message   string `json:"message" validate:"omitempty,max=5000"`
}

func (f *ExpertForm) Fields() map[string]interface{} {
	return compact(map[string]interface{}{
		"Name":      f.Name,
		"Email":     f.Email,
		"Expertise": f.Expertise,
		"LinkedIn":  f.LinkedIn,
		"Message":   f.Message,
	})
}

func (f *ExpertForm) Contact() string { return f.Email }
func (f *ExpertForm) Summary() string { return f.Expertise }

type NewsletterForm struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=200"`
}

func (f *NewsletterForm) Fields() map[string]interface{} {
	return compact(map[string]interface{}{
		"Email": f.Email,
		"Name":  f.Name,
	})
}

func (f *NewsletterForm) Contact() string { return f.Email }
func (f *NewsletterForm) Summary() string { return "Newsletter signup" }

// compact drops blank values so Airtable keeps its column defaults.
func compact(fields map[string]interface{}) map[string]interface{} {
	for k, v := range fields {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			delete(fields, k)
		}
	}
	return fields
}
