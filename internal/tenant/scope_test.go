package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Scope{CompanyID: 1, ChatbotID: 2}.Validate())

	assert.ErrorIs(t, Scope{}.Validate(), ErrInvalidScope)
	assert.ErrorIs(t, Scope{CompanyID: 1}.Validate(), ErrInvalidScope)
	assert.ErrorIs(t, Scope{ChatbotID: 2}.Validate(), ErrInvalidScope)
	assert.ErrorIs(t, Scope{CompanyID: -1, ChatbotID: 2}.Validate(), ErrInvalidScope)
}

func TestString(t *testing.T) {
	assert.Equal(t, "company=7 chatbot=9", Scope{CompanyID: 7, ChatbotID: 9}.String())
}
