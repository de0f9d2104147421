package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"locum-backend/internal/shift/domain"
	"locum-backend/internal/shift/repository"

	"gorm.io/gorm"
)

const (
	listLimit      = 200
	defaultSubject = "Locum booking request"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

type offerUsecase struct {
	offers    repository.OfferRepository
	templates repository.TemplateRepository
}

func NewOfferUsecase(offers repository.OfferRepository, templates repository.TemplateRepository) OfferUsecase {
	return &offerUsecase{offers: offers, templates: templates}
}

func (u *offerUsecase) ListOffers(ctx context.Context, status *domain.OfferStatus) ([]*domain.ShiftOffer, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return u.offers.List(ctx, status, listLimit)
}

func (u *offerUsecase) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	err := u.offers.UpdateStatus(ctx, id, status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOfferNotFound
	}
	return err
}

// SelectTemplate prefers an exact agency match, then the "default" agency.
// With neither stored it returns an empty built-in template.
func (u *offerUsecase) SelectTemplate(ctx context.Context, channel domain.BookingChannel, agency string) (*domain.BookingTemplate, error) {
	candidates, err := u.templates.FindForChannel(ctx, channel, agency, domain.DefaultAgency)
	if err != nil {
		return nil, fmt.Errorf("find templates: %w", err)
	}

	var fallback *domain.BookingTemplate
	for _, tpl := range candidates {
		if agency != "" && tpl.Agency == agency {
			return tpl, nil
		}
		if tpl.Agency == domain.DefaultAgency {
			fallback = tpl
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return &domain.BookingTemplate{Agency: domain.DefaultAgency, Channel: channel}, nil
}

func (u *offerUsecase) BuildAction(ctx context.Context, id string, channel domain.BookingChannel) (*Action, error) {
	if channel != domain.ChannelEmail && channel != domain.ChannelWhatsApp {
		return nil, ErrInvalidAction
	}

	offer, err := u.offers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	tpl, err := u.SelectTemplate(ctx, channel, deref(offer.Agency))
	if err != nil {
		return nil, err
	}

	payload := OfferPayload(offer)
	action := &Action{
		Channel: channel,
		Body:    FillTemplate(tpl.BodyTemplate, payload),
	}
	target := deref(offer.BookingTarget)

	if channel == domain.ChannelEmail {
		subject := defaultSubject
		if tpl.SubjectTemplate != nil {
			subject = *tpl.SubjectTemplate
		}
		action.Subject = FillTemplate(subject, payload)
		action.URL = fmt.Sprintf("mailto:%s?subject=%s&body=%s",
			escape(target), escape(action.Subject), escape(action.Body))
		return action, nil
	}

	phone := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, target)
	action.URL = fmt.Sprintf("https://wa.me/%s?text=%s", phone, escape(action.Body))
	return action, nil
}

func (u *offerUsecase) ListTemplates(ctx context.Context) ([]*domain.BookingTemplate, error) {
	return u.templates.List(ctx)
}

func (u *offerUsecase) UpsertTemplate(ctx context.Context, tpl *domain.BookingTemplate) error {
	if tpl.Agency == "" {
		tpl.Agency = domain.DefaultAgency
	}
	if tpl.Channel != domain.ChannelEmail && tpl.Channel != domain.ChannelWhatsApp {
		return ErrInvalidAction
	}
	return u.templates.Upsert(ctx, tpl)
}

// FillTemplate replaces {{field}} with data[field]; unknown or empty fields
// become "".
func FillTemplate(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return data[key]
	})
}

// OfferPayload exposes the offer fields usable in templates.
func OfferPayload(o *domain.ShiftOffer) map[string]string {
	data := map[string]string{
		"date":          o.Date,
		"practice_name": deref(o.PracticeName),
		"town":          deref(o.Town),
		"postcode":      deref(o.Postcode),
		"start_time":    deref(o.StartTime),
		"end_time":      deref(o.EndTime),
		"agency":        deref(o.Agency),
		"notes":         deref(o.Notes),
	}
	if o.RateValue != nil {
		data["rate_value"] = strconv.FormatFloat(*o.RateValue, 'f', -1, 64)
	}
	if o.RateUnit != nil {
		data["rate_unit"] = string(*o.RateUnit)
	}
	return data
}

// escape percent-encodes like encodeURIComponent, spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
