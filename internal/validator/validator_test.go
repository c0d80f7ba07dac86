package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mockmate/internal/model"
)

func TestStructEntryRequest(t *testing.T) {
	if fields := Struct(model.EntryRequest{StudentName: "Ayu", RollNumber: "A12"}); fields != nil {
		t.Fatalf("valid entry rejected: %v", fields)
	}

	fields := Struct(model.EntryRequest{StudentName: "", RollNumber: "A-12"})
	if _, ok := fields["student_name"]; !ok {
		t.Fatalf("missing student_name error: %v", fields)
	}
	if _, ok := fields["roll_number"]; !ok {
		t.Fatalf("missing roll_number error: %v", fields)
	}
}

type codeQuery struct {
	Code string `json:"code" form:"code" binding:"required,testcode" validate:"required,testcode"`
}

func TestTestCodeTag(t *testing.T) {
	if fields := Struct(codeQuery{Code: "AB12"}); fields != nil {
		t.Fatalf("valid code rejected: %v", fields)
	}
	fields := Struct(codeQuery{Code: "ab1"})
	if msg := fields["code"]; !strings.Contains(msg, "4 uppercase") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBindUsesJSONNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"","options":["a"]}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req model.CreateQuestionRequest
	fields := Bind(c, &req)
	for _, key := range []string{"text", "options", "correct_answer", "topic"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing %q in %v", key, fields)
		}
	}
}

func TestBindSyntaxError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req model.CreateQuestionRequest
	if fields := Bind(c, &req); fields["detail"] == "" {
		t.Fatalf("expected detail, got %v", fields)
	}
}
