package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	fields := map[string]string{
		"customer_name": "Ana",
		"recovery_url":  "https://x/y",
	}

	t.Run("substitutes all placeholders", func(t *testing.T) {
		out, err := Render("Hi {{customer_name}}, complete your order: {{recovery_url}}", fields)
		require.NoError(t, err)
		assert.Equal(t, "Hi Ana, complete your order: https://x/y", out)
	})

	t.Run("missing required placeholder fails", func(t *testing.T) {
		_, err := Render("Your code is {{otp_code}}", fields)
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, []string{"otp_code"}, renderErr.Missing)
	})

	t.Run("explicit fallback fills missing field", func(t *testing.T) {
		out, err := Render("Hi {{customer_name|there}}!", map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, "Hi there!", out)
	})

	t.Run("field value wins over fallback", func(t *testing.T) {
		out, err := Render("Hi {{customer_name|there}}!", fields)
		require.NoError(t, err)
		assert.Equal(t, "Hi Ana!", out)
	})

	t.Run("empty fallback is allowed", func(t *testing.T) {
		out, err := Render("Hi{{honorific|}} Ana", map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, "Hi Ana", out)
	})

	t.Run("no placeholders", func(t *testing.T) {
		out, err := Render("plain text", fields)
		require.NoError(t, err)
		assert.Equal(t, "plain text", out)
	})

	t.Run("deterministic across repeated calls", func(t *testing.T) {
		body := "Hi {{customer_name}}, order {{order_id|unknown}} ready"
		first, err := Render(body, fields)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := Render(body, fields)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}
