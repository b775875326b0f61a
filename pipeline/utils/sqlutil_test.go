package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLiteral(t *testing.T) {
	assert.Equal(t, "Gold", SanitizeLiteral("Gold"))
	assert.Equal(t, "O''Hara", SanitizeLiteral("O'Hara"))
	assert.Equal(t, "''''", SanitizeLiteral("''"))
	assert.Equal(t, "", SanitizeLiteral(""))
}

func TestSanitizeLiteralNeutralizesInjection(t *testing.T) {
	// Попытка выйти из литерала остается внутри литерала
	hostile := "Gold'); DROP TABLE dim_mentors; --"
	assert.Equal(t, "Gold''); DROP TABLE dim_mentors; --", SanitizeLiteral(hostile))
}

func TestBuildInList(t *testing.T) {
	assert.Equal(t, "'Gold'", BuildInList([]string{"Gold"}))
	assert.Equal(t, "'Gold', 'Silver', 'Bronze'", BuildInList([]string{"Gold", "Silver", "Bronze"}))
	assert.Equal(t, "'Sil''ver'", BuildInList([]string{"Sil'ver"}))
	assert.Equal(t, "", BuildInList(nil))
}
