package auth

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
