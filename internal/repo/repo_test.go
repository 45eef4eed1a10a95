package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	raw := &pq.Error{Code: "23505", Constraint: "participants_email_unique"}

	assert.True(t, uniqueViolation(raw))
	assert.True(t, uniqueViolation(fmt.Errorf("failed to create participant: %w", raw)),
		"a wrapped driver error must still be recognized")

	assert.False(t, uniqueViolation(&pq.Error{Code: "23503"}), "other constraint classes are not duplicates")
	assert.False(t, uniqueViolation(errors.New("connection reset")))
	assert.False(t, uniqueViolation(nil))
}

func TestDeclaredAmountMatches(t *testing.T) {
	tests := []struct {
		name     string
		declared float64
		owed     float64
		ok       bool
	}{
		{"exact", 1100, 1100, true},
		{"within tolerance", 1100.01, 1100, true},
		{"just past tolerance", 1100.02, 1100, false},
		{"undershoot", 1000, 1100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, declaredAmountMatches(tt.declared, tt.owed))
		})
	}
}

func TestLockOrder(t *testing.T) {
	order, isWorkshop := lockOrder([]int64{9, 3}, []int64{5, 3, 1, 5})

	// Ascending across both lists so every transaction locking several
	// event rows takes them in the same global order.
	assert.Equal(t, []int64{1, 3, 5, 9}, order)

	assert.True(t, isWorkshop[9])
	assert.True(t, isWorkshop[3], "an id named by both lists is held to the workshop checks")
	assert.False(t, isWorkshop[5])
	assert.False(t, isWorkshop[1])
}

func TestLockOrderEmpty(t *testing.T) {
	order, isWorkshop := lockOrder(nil, nil)
	assert.Empty(t, order)
	assert.Empty(t, isWorkshop)
}
