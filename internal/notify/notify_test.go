package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
)

func sampleSummary() Summary {
	return Summary{
		Status:        "SUCCESS",
		FileName:      "sales_20250115.csv",
		Duration:      1500 * time.Millisecond,
		TotalRead:     10,
		TotalValid:    8,
		TotalRejected: 2,
		Inserts:       8,
	}
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func recordingSender(out *[]sentMail, err error) SendMailFunc {
	return func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*out = append(*out, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return err
	}
}

func TestSendReport_Disabled(t *testing.T) {
	var sent []sentMail
	n := New(config.NotifyConfig{
		Enabled:      false,
		SMTPUser:     "etl@example.com",
		SMTPPassword: "secret",
	}, WithSendMail(recordingSender(&sent, nil)))

	require.NoError(t, n.SendReport(context.Background(), sampleSummary()))
	assert.Empty(t, sent)
}

func TestSendReport_Email(t *testing.T) {
	var sent []sentMail
	n := New(config.NotifyConfig{
		Enabled:      true,
		SMTPServer:   "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "etl@example.com",
		SMTPPassword: "secret",
	}, WithSendMail(recordingSender(&sent, nil)))

	require.NoError(t, n.SendReport(context.Background(), sampleSummary()))
	require.Len(t, sent, 1)

	mail := sent[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "etl@example.com", mail.from)
	assert.Equal(t, []string{"etl@example.com"}, mail.to, "recipient falls back to the SMTP user")
	assert.Contains(t, mail.msg, "Subject: ETL Report\r\n")
	assert.Contains(t, mail.msg, "Status: SUCCESS\r\n")
	assert.Contains(t, mail.msg, "Time: 1.50s\r\n")
	assert.Contains(t, mail.msg, "Files Processed: sales_20250115.csv\r\n")
	assert.Contains(t, mail.msg, "Rejected: 2\r\n")
}

func TestSendReport_EmailFailureIsReturned(t *testing.T) {
	var sent []sentMail
	n := New(config.NotifyConfig{
		Enabled:       true,
		SMTPServer:    "smtp.example.com",
		SMTPPort:      587,
		SMTPUser:      "etl@example.com",
		SMTPPassword:  "secret",
		SMTPRecipient: "ops@example.com",
	}, WithSendMail(recordingSender(&sent, errors.New("535 authentication failed"))))

	err := n.SendReport(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, sent[0].to)
}

func TestSendReport_Slack(t *testing.T) {
	var payload struct {
		Blocks []struct {
			Type string `json:"type"`
			Text *struct {
				Text string `json:"text"`
			} `json:"text"`
			Fields []struct {
				Text string `json:"text"`
			} `json:"fields"`
		} `json:"blocks"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{Enabled: true, SlackWebhookURL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, n.SendReport(context.Background(), sampleSummary()))

	require.Len(t, payload.Blocks, 4)
	assert.Equal(t, "header", payload.Blocks[0].Type)
	require.NotNil(t, payload.Blocks[0].Text)
	assert.Equal(t, "📊 ETL Job Report", payload.Blocks[0].Text.Text)

	require.Len(t, payload.Blocks[1].Fields, 2)
	assert.Equal(t, "*Status:*\nSUCCESS", payload.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Duration:*\n1.50s", payload.Blocks[1].Fields[1].Text)

	require.Len(t, payload.Blocks[2].Fields, 3)
	assert.Equal(t, "*Read:*\n10", payload.Blocks[2].Fields[0].Text)
	assert.Equal(t, "*Valid:*\n8", payload.Blocks[2].Fields[1].Text)
	assert.Equal(t, "*Rejected:*\n2", payload.Blocks[2].Fields[2].Text)

	assert.Equal(t, "divider", payload.Blocks[3].Type)
}

func TestSendReport_SlackNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{Enabled: true, SlackWebhookURL: srv.URL}, WithHTTPClient(srv.Client()))
	err := n.SendReport(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack api error: 400 invalid_payload")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.NotifyConfig
		want Status
	}{
		{
			name: "nothing configured",
			cfg:  config.NotifyConfig{Enabled: true},
			want: Status{},
		},
		{
			name: "configured but disabled",
			cfg: config.NotifyConfig{
				SMTPUser: "u", SMTPPassword: "p", SlackWebhookURL: "https://hooks.example.com/x",
			},
			want: Status{SMTPConfigured: true, SlackConfigured: true},
		},
		{
			name: "enabled with slack only",
			cfg:  config.NotifyConfig{Enabled: true, SlackWebhookURL: "https://hooks.example.com/x"},
			want: Status{SlackEnabled: true, SlackConfigured: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.cfg).Status())
		})
	}
}

func TestFormatReport(t *testing.T) {
	got := FormatReport(sampleSummary())
	want := "ETL Execution Report\n" +
		"--------------------\n" +
		"Status: SUCCESS\n" +
		"Time: 1.50s\n\n" +
		"Files Processed: sales_20250115.csv\n" +
		"Rows Read: 10\n\n" +
		"Valid: 8\n" +
		"Rejected: 2\n\n" +
		"DB Inserts: 8\n" +
		"DB Updates: 0\n"
	assert.Equal(t, want, got)
}
