package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	b, err := json.Marshal(Error(CodeConflict, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":409,"msg":"Conflict","data":{}}`, string(b))

	b, err = json.Marshal(OK(NewPage[string](nil, 0)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":0,"msg":"OK","data":{"total":0,"items":[]}}`, string(b))
}
