package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ritmatiza/services/email"
)

func Test_contactApi_send(t *testing.T) {
	env := setup(t)

	t.Run("invalid", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/contact", marchallObj(t, map[string]string{
			"name": "Ana", "email": "not-an-email", "subject": "Hola", "message": "",
		}))
		env.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "name")
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "subject")
		assert.Equal(t, "this field is required", fields["message"])
		assert.Empty(t, emailsvc.SentMessages)
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/contact", marchallObj(t, map[string]string{
			"name": "Ana Torres", "email": "Ana@Test.test", "subject": "Playlist idea", "message": "More jazz please",
		}))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, "Contacto: Playlist idea", msg.Subject)
		require.Len(t, msg.To, 1)
		assert.Equal(t, env.conf.ContactEmail().Address, msg.To[0].Address)
		require.NotNil(t, msg.ReplyTo)
		assert.Equal(t, "ana@test.test", msg.ReplyTo.Address)
		assert.Equal(t, "Ana Torres", msg.ReplyTo.Name)
		assert.Contains(t, msg.TextContent, "More jazz please")
	})
}
