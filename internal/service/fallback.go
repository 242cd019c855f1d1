package service

import (
	"context"
	"time"

	"bluecast/internal/privacy"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/sirupsen/logrus"
)

// FallbackPolicy resolves an SMS chat for a recipient after the primary
// transport rejected an attachment. It only decides where to retarget; the
// dispatcher owns the resubmission.
type FallbackPolicy struct {
	gateway     gwtypes.Client
	settleDelay time.Duration
	logger      *logrus.Logger
}

func NewFallbackPolicy(gateway gwtypes.Client, settleDelay time.Duration, logger *logrus.Logger) *FallbackPolicy {
	return &FallbackPolicy{
		gateway:     gateway,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

// Retarget asks the gateway to provision an SMS chat for the address and
// returns its GUID, synthesizing one when the gateway does not answer with
// an identifier. Chat provisioning is asynchronous on the gateway side, so a
// short settle delay runs before the caller resubmits.
func (f *FallbackPolicy) Retarget(ctx context.Context, address string) (string, error) {
	chatGUID, err := f.gateway.CreateChat(ctx, address, gwtypes.ServiceSMS)
	if err != nil {
		f.logger.WithError(err).WithField("address", privacy.MaskPhoneNumber(address)).
			Warn("SMS chat creation failed, synthesizing chat GUID")
		chatGUID = ""
	}
	if chatGUID == "" {
		chatGUID = gwtypes.ChatGUID(gwtypes.ServiceSMS, address)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(f.settleDelay):
	}

	return chatGUID, nil
}
