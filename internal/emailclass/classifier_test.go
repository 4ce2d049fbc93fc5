package emailclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Free(t *testing.T) {
	c := NewStaticClassifier()
	got := c.Classify("alice@gmail.com")
	assert.True(t, got.Free)
	assert.False(t, got.Open)
	assert.False(t, got.TimeBound)
	assert.False(t, got.Subaddressed)
	assert.True(t, got.Any())
}

func TestClassify_CategoriesAreIndependent(t *testing.T) {
	c := NewStaticClassifier()
	// Subaddressed free-provider address matches both categories.
	got := c.Classify("alice+petitions@gmail.com")
	assert.True(t, got.Free)
	assert.True(t, got.Subaddressed)
}

func TestClassify_TimeBound(t *testing.T) {
	c := NewStaticClassifier()
	got := c.Classify("burner@10minutemail.com")
	assert.True(t, got.TimeBound)
	assert.False(t, got.Free)
}

func TestClassify_Subaddressing(t *testing.T) {
	c := NewStaticClassifier()
	assert.True(t, c.Classify("a+b@example.org").Subaddressed)
	// Leading or trailing plus is not a tag.
	assert.False(t, c.Classify("+abc@example.org").Subaddressed)
	assert.False(t, c.Classify("abc+@example.org").Subaddressed)
	assert.False(t, c.Classify("abc@example.org").Subaddressed)
}

func TestClassify_CaseAndWhitespace(t *testing.T) {
	c := NewStaticClassifier()
	assert.True(t, c.Classify("  Bob@GMAIL.com ").Free)
}

func TestClassify_Invalid(t *testing.T) {
	c := NewStaticClassifier()
	assert.False(t, c.Classify("").Any())
	assert.False(t, c.Classify("no-at-sign").Any())
	assert.False(t, c.Classify("@domain.only").Any())
	assert.False(t, c.Classify("local94@").Any())
}

func TestAddDomain(t *testing.T) {
	c := NewStaticClassifier()
	assert.False(t, c.Classify("x@sketchy.example").Any())
	c.AddDomain("shredder", "Sketchy.Example")
	assert.True(t, c.Classify("x@sketchy.example").Shredder)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a@b.c", Normalize("  A@B.C "))
}
