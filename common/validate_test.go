package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleInput struct {
	Title    string `json:"title" validate:"required,max=5"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Category string `json:"category" validate:"required,uuid"`
}

func TestValidateStruct_CollectsEveryField(t *testing.T) {
	v := ValidateStruct(sampleInput{})

	assert.Len(t, v.Fields, 4)
	assert.Equal(t, FieldError{Field: "title", Message: "Title is required"}, v.Fields[0])
	assert.True(t, v.Has("email"))
	assert.True(t, v.Has("password"))
	assert.True(t, v.Has("category"))
}

func TestValidateStruct_Messages(t *testing.T) {
	v := ValidateStruct(sampleInput{
		Title:    "too long",
		Email:    "nope",
		Password: "abc",
		Category: "123",
	})

	msgs := map[string]string{}
	for _, f := range v.Fields {
		msgs[f.Field] = f.Message
	}
	assert.Equal(t, "Title cannot be more than 5 characters", msgs["title"])
	assert.Equal(t, "Please provide a valid email", msgs["email"])
	assert.Equal(t, "Password must be at least 6 characters", msgs["password"])
	assert.Equal(t, "Invalid category ID", msgs["category"])
}

func TestValidateStruct_Valid(t *testing.T) {
	v := ValidateStruct(sampleInput{
		Title:    "hi",
		Email:    "a@x.com",
		Password: "secret1",
		Category: "0b8f4a9e-6c3d-4f1e-9a2b-3c4d5e6f7a8b",
	})
	assert.NoError(t, v.OrNil())
}
