package store

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

// SanitizingStorage repairs broken server URLs on demand. A read that fails
// with ErrURIParseFailed triggers a sanitizer run and is retried once.
type SanitizingStorage struct {
	MailAccountStorage

	sanitizer *Sanitizer
}

var _ MailAccountStorage = (*SanitizingStorage)(nil)

func NewSanitizingStorage(next MailAccountStorage, sanitizer *Sanitizer) *SanitizingStorage {
	return &SanitizingStorage{MailAccountStorage: next, sanitizer: sanitizer}
}

// retry runs call and, if it fails on an unparsable URL, sanitizes the user
// (or the whole context for a negative userID) and runs it again.
func retry[T any](ctx context.Context, s *SanitizingStorage, userID, contextID int, call func() (T, error)) (T, error) {
	v, err := call()
	if !IsURIParseFailed(err) || s.sanitizer == nil {
		return v, err
	}
	fields := logrus.Fields{"user": userID, "context": contextID}
	log.WithError(err).WithFields(fields).Info("sanitizing mail accounts")

	var serr error
	if userID < 0 {
		serr = s.sanitizer.SanitizeContext(ctx, contextID, s.MailAccountStorage)
	} else {
		serr = s.sanitizer.Sanitize(ctx, userID, contextID, s.MailAccountStorage)
	}
	if serr != nil {
		log.WithError(serr).WithFields(fields).Warn("failed to sanitize mail accounts")
		return v, err
	}
	return call()
}

func (s *SanitizingStorage) GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error) {
	return retry(ctx, s, userID, contextID, func() (*domain.MailAccount, error) {
		return s.MailAccountStorage.GetMailAccount(ctx, id, userID, contextID)
	})
}

func (s *SanitizingStorage) GetDefaultMailAccount(ctx context.Context, userID, contextID int) (*domain.MailAccount, error) {
	return retry(ctx, s, userID, contextID, func() (*domain.MailAccount, error) {
		return s.MailAccountStorage.GetDefaultMailAccount(ctx, userID, contextID)
	})
}

func (s *SanitizingStorage) GetUserMailAccounts(ctx context.Context, userID, contextID int) ([]*domain.MailAccount, error) {
	return retry(ctx, s, userID, contextID, func() ([]*domain.MailAccount, error) {
		return s.MailAccountStorage.GetUserMailAccounts(ctx, userID, contextID)
	})
}

func (s *SanitizingStorage) ExistsMailAccount(ctx context.Context, id, userID, contextID int) (bool, error) {
	return retry(ctx, s, userID, contextID, func() (bool, error) {
		return s.MailAccountStorage.ExistsMailAccount(ctx, id, userID, contextID)
	})
}

func (s *SanitizingStorage) ResolveLoginAtServer(ctx context.Context, login, serverAddr string, contextID int) ([]UserAccount, error) {
	return retry(ctx, s, -1, contextID, func() ([]UserAccount, error) {
		return s.MailAccountStorage.ResolveLoginAtServer(ctx, login, serverAddr, contextID)
	})
}

func (s *SanitizingStorage) GetByHostNames(ctx context.Context, hostNames []string, userID, contextID int) ([]*domain.MailAccount, error) {
	return retry(ctx, s, userID, contextID, func() ([]*domain.MailAccount, error) {
		return s.MailAccountStorage.GetByHostNames(ctx, hostNames, userID, contextID)
	})
}
