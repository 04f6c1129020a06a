package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorUtilsSuite struct {
	suite.Suite
}

func TestErrorUtilsSuite(t *testing.T) {
	suite.Run(t, new(ErrorUtilsSuite))
}

var errBase = errors.New("disk full")

func wrapFromHelper() error {
	return WrapIfNotNil(errBase, "saving audio")
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilNilReturnsNil() {
	s.NoError(WrapIfNotNil(nil, "ignored"))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilPrefixesCallerAndContext() {
	err := wrapFromHelper()

	s.Require().Error(err)
	s.ErrorIs(err, errBase)
	s.Contains(err.Error(), "utils.wrapFromHelper")
	s.Contains(err.Error(), "saving audio")
}

func (s *ErrorUtilsSuite) TestContainsErrorSubstringWalksChain() {
	err := WrapIfNotNil(WrapIfNotNil(errBase))

	s.True(ContainsErrorSubstring(err, "disk full"))
	s.False(ContainsErrorSubstring(err, "quota"))
	s.False(ContainsErrorSubstring(nil, "disk full"))
}

func (s *ErrorUtilsSuite) TestRecoveredErrorKeepsWrappedError() {
	s.NoError(RecoveredError(nil))
	s.ErrorIs(RecoveredError(errBase), errBase)
	s.EqualError(RecoveredError("boom"), "panic: boom")
}
