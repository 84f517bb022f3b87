package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"hackmate/internal/platform/logger"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *MockTokenValidator
	called    bool
	ctx       context.Context
	handler   http.Handler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = new(MockTokenValidator)
	s.called = false
	s.ctx = nil
	s.handler = RequireParticipant(s.validator, logger.Discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.called = true
			s.ctx = r.Context()
			w.WriteHeader(http.StatusOK)
		}),
	)
}

func (s *AuthMiddlewareSuite) serve(authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/registrations/status", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareSuite) TestValidTokenStoresClaims() {
	s.validator.On("ValidateToken", "good").
		Return(&Claims{ParticipantID: "p-1", Email: "asha@example.com", TokenID: "jti-1"}, nil)

	w := s.serve("Bearer good")

	s.Equal(http.StatusOK, w.Code)
	s.Require().True(s.called)
	s.Equal("p-1", GetParticipantID(s.ctx))
	claims, ok := GetClaims(s.ctx)
	s.True(ok)
	s.Equal("asha@example.com", claims.Email)
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareSuite) TestMissingOrMalformedHeader() {
	for _, header := range []string{"", "Basic abc", "Bearer ", "bearer good"} {
		s.Run(header, func() {
			s.called = false
			w := s.serve(header)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.Contains(w.Body.String(), "Please sign in")
			s.False(s.called)
		})
	}
	s.validator.AssertNotCalled(s.T(), "ValidateToken", mock.Anything)
}

func (s *AuthMiddlewareSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "expired").Return(nil, errors.New("token expired"))

	w := s.serve("Bearer expired")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "expired")
	s.False(s.called)
}

func (s *AuthMiddlewareSuite) TestTokenWithoutSubjectRejected() {
	s.validator.On("ValidateToken", "anon").Return(&Claims{}, nil)

	w := s.serve("Bearer anon")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.called)
}

func (s *AuthMiddlewareSuite) TestPlainContextHasNoParticipant() {
	s.Empty(GetParticipantID(context.Background()))
}
