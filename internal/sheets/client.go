package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/contact-sync/internal/common"
)

// API is the part of the Sheets API the reader and writer use.
type API interface {
	GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]any, error)
	ClearValues(ctx context.Context, spreadsheetID, clearRange string) error
	UpdateValues(ctx context.Context, spreadsheetID, updateRange string, values [][]any) error
	CreateSpreadsheet(ctx context.Context, title, timeZone, tab string) (string, error)
	// EnsureTab returns the sheet ID of the named tab, adding the tab when missing.
	EnsureTab(ctx context.Context, spreadsheetID, title string) (int64, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error
}

type googleAPI struct {
	service *sheets.Service
}

// NewAPI connects to the Sheets API with the configured credentials.
func NewAPI(ctx context.Context, config Config) (API, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &googleAPI{service: service}, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch {
	case config.ServiceAccountPath != "":
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)

	default:
		token := &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}
		if token.RefreshToken == "" {
			saved, err := LoadToken(config.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("no refresh token configured and no saved token: %w", err)
			}
			token = saved
		}
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (g *googleAPI) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]any, error) {
	resp, err := g.service.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}
	return resp.Values, nil
}

func (g *googleAPI) ClearValues(ctx context.Context, spreadsheetID, clearRange string) error {
	_, err := g.service.Spreadsheets.Values.Clear(spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return classify(err)
}

func (g *googleAPI) UpdateValues(ctx context.Context, spreadsheetID, updateRange string, values [][]any) error {
	_, err := g.service.Spreadsheets.Values.Update(spreadsheetID, updateRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return classify(err)
}

func (g *googleAPI) CreateSpreadsheet(ctx context.Context, title, timeZone, tab string) (string, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title, TimeZone: timeZone},
		Sheets:     []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: tab}}},
	}
	created, err := g.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return created.SpreadsheetId, nil
}

func (g *googleAPI) EnsureTab(ctx context.Context, spreadsheetID, title string) (int64, error) {
	spreadsheet, err := g.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, classify(err)
	}
	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}

	resp, err := g.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}}}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, classify(err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, fmt.Errorf("add sheet %q returned no properties", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (g *googleAPI) BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error {
	_, err := g.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).
		Do()
	return classify(err)
}

// classify maps API errors onto the retry policy: quota errors back off,
// other client errors are not retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return common.Permanent(err)
	default:
		return err
	}
}
