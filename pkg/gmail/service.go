package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	syncdomain "locum-backend/internal/sync/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	user              = "me"
	defaultSearchSize = 50
)

// Service implements syncdomain.MailProvider over the Gmail REST API.
type Service struct {
	searchSize int64
	opts       []option.ClientOption
}

// NewService returns a Gmail client. Extra options are appended to every
// underlying gmail.Service (e.g. option.WithEndpoint in tests).
func NewService(opts ...option.ClientOption) *Service {
	return &Service{searchSize: defaultSearchSize, opts: opts}
}

var _ syncdomain.MailProvider = (*Service)(nil)

// GetGmailService creates a Gmail service authorized with a bearer token.
// Refreshing is the caller's concern.
func (s *Service) GetGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	client := oauth2.NewClient(ctx, src)

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Search lists one bounded page of message refs matching query.
func (s *Service) Search(ctx context.Context, accessToken, query string) ([]syncdomain.MessageRef, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List(user).MaxResults(s.searchSize).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	refs := make([]syncdomain.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, syncdomain.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

func (s *Service) Fetch(ctx context.Context, accessToken, id string) (*syncdomain.Message, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %w", id, err)
	}
	return convertMessage(msg), nil
}

// ListHistory replays message-added events since sinceCursor across all pages.
// A 404 from the provider (or an unparseable cursor) yields ErrCursorExpired.
func (s *Service) ListHistory(ctx context.Context, accessToken, sinceCursor string) (*syncdomain.HistoryPage, error) {
	start, err := strconv.ParseUint(sinceCursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor %q", syncdomain.ErrCursorExpired, sinceCursor)
	}

	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	page := &syncdomain.HistoryPage{}
	seen := make(map[string]bool)
	var latest uint64

	call := srv.Users.History.List(user).StartHistoryId(start).HistoryTypes("messageAdded")
	err = call.Pages(ctx, func(resp *gmail.ListHistoryResponse) error {
		if resp.HistoryId > latest {
			latest = resp.HistoryId
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				page.AddedMessageIDs = append(page.AddedMessageIDs, added.Message.Id)
			}
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %w", syncdomain.ErrCursorExpired, err)
		}
		return nil, fmt.Errorf("unable to list history: %w", err)
	}

	if latest > 0 {
		page.HistoryID = strconv.FormatUint(latest, 10)
	}
	return page, nil
}

func (s *Service) GetProfile(ctx context.Context, accessToken string) (*syncdomain.Profile, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	profile, err := srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	return &syncdomain.Profile{
		EmailAddress: profile.EmailAddress,
		HistoryID:    formatHistoryID(profile.HistoryId),
	}, nil
}

func (s *Service) ListLabels(ctx context.Context, accessToken string) ([]syncdomain.Label, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve labels: %w", err)
	}

	labels := make([]syncdomain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, syncdomain.Label{ID: l.Id, Name: l.Name})
	}
	return labels, nil
}

// RegisterWatch sets up push notifications to a Pub/Sub topic.
func (s *Service) RegisterWatch(ctx context.Context, accessToken, topicName string, labelIDs []string) (*syncdomain.WatchResult, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	req := &gmail.WatchRequest{
		TopicName:         topicName,
		LabelIds:          labelIDs,
		LabelFilterAction: "include",
	}
	resp, err := srv.Users.Watch(user, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to watch mailbox: %w", err)
	}

	result := &syncdomain.WatchResult{HistoryID: formatHistoryID(resp.HistoryId)}
	if resp.Expiration > 0 {
		exp := time.UnixMilli(resp.Expiration)
		result.Expiration = &exp
	}
	return result, nil
}

func convertMessage(msg *gmail.Message) *syncdomain.Message {
	m := &syncdomain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		t := time.UnixMilli(msg.InternalDate)
		m.InternalDate = &t
	}
	if msg.Payload != nil {
		m.Subject = getHeader(msg.Payload.Headers, "Subject")
		m.From = getHeader(msg.Payload.Headers, "From")
		m.Date = getHeader(msg.Payload.Headers, "Date")
		m.Payload = convertPart(msg.Payload)
	}
	return m
}

func convertPart(part *gmail.MessagePart) syncdomain.MessagePart {
	out := syncdomain.MessagePart{MimeType: part.MimeType}
	if part.Body != nil {
		out.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		if child != nil {
			out.Parts = append(out.Parts, convertPart(child))
		}
	}
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func formatHistoryID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
