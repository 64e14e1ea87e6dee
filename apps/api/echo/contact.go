package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
)

const contactSubjectPrefix = "Contacto: "

type contactApi struct {
	conf     *core.Config
	mailer   core.EmailService
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, limit echo.MiddlewareFunc, s *server) {
	api := contactApi{
		conf:     s.conf,
		mailer:   s.deps.Mailer,
		validate: s.validate,
	}
	g.POST("/contact", api.send, limit)
}

// send forwards the message to the contact mailbox; replies go to the sender.
func (api *contactApi) send(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	api.mailer.SendMessages(&core.EmailMessage{
		To:      []mail.Address{api.conf.ContactEmail()},
		ReplyTo: &mail.Address{Name: data.Name, Address: data.Email},
		Subject: contactSubjectPrefix + data.Subject,
		BodyStr: fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", data.Name, data.Email, data.Message),
	})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Message sent."})
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=5,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"required,min=5,max=100"`
	Message string `json:"message" validate:"required,max=3000"`
}

func (cr *ContactRequest) Validate(validate *validator.Validate) error {
	cr.Name = core.CleanString(cr.Name)
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	cr.Subject = core.CleanString(cr.Subject)
	cr.Message = core.CleanString(cr.Message)
	return validate.Struct(cr)
}
