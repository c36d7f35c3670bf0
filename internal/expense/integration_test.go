package expense_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/genai"

	"github.com/zombor/kakeibo/internal/expense"
	"github.com/zombor/kakeibo/internal/scanning"
)

// cannedGenerator answers every request with the same model reply.
type cannedGenerator struct {
	reply string
}

func (g *cannedGenerator) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: g.reply}}}},
		},
	}, nil
}

func receiptPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		db       *expense.BoltDB
		store    *expense.LocalStorage
		ghServer *ghttp.Server
	)

	const reply = "```json\n" + `{
		"date": "2024年3月20日",
		"merchant": "スーパー玉出",
		"totalAmount": "¥1,280",
		"category": "food",
		"items": [
			{"name": "牛乳", "price": "238", "category": "Food"},
			{"name": "卵", "price": 1042, "category": "food"}
		]
	}` + "\n```"

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = expense.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = expense.NewLocalStorage(filepath.Join(tempDir, "drafts"))
		Expect(err).NotTo(HaveOccurred())

		scanner := scanning.Instrument("genai", scanning.NewGenAIWithGenerator(&cannedGenerator{reply: reply}, ""))
		service := expense.NewService(db, scanner, store)
		server := expense.NewServer(service, map[string]string{"hanako": "pw"})

		ghServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "PATCH", "DELETE"} {
			ghServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.Handler().ServeHTTP)
		}
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	call := func(method, path string, body io.Reader, contentType string, out any) int {
		req, err := http.NewRequest(method, ghServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		req.SetBasicAuth("hanako", "pw")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		if out != nil && resp.StatusCode < 300 {
			Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
		}
		return resp.StatusCode
	}

	It("should scan, edit, save, report and delete a receipt", func() {
		// --- Step 1: scan one multipart image and one base64 image ---
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "IMG_0420.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(receiptPNG())
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		var batch expense.BatchResult
		Expect(call("POST", "/api/drafts/scan", body, writer.FormDataContentType(), &batch)).To(Equal(http.StatusOK))
		Expect(batch.Errors).To(BeEmpty())
		Expect(batch.Drafts).To(HaveLen(1))

		draft := batch.Drafts[0]
		Expect(draft.State).To(Equal(expense.StateSummary))
		Expect(draft.Record.Date).To(Equal("2024-03-20"))
		Expect(draft.Record.Merchant).To(Equal("スーパー玉出"))
		Expect(draft.Record.TotalAmount).To(Equal(1280.0))
		Expect(draft.Record.Category).To(Equal("Food"))
		Expect(draft.Record.Items).To(HaveLen(2))

		encoded := base64.StdEncoding.EncodeToString(receiptPNG())
		var second expense.BatchResult
		payload := `{"images":[{"filename":"second.png","data":"data:image/png;base64,` + encoded + `"}]}`
		Expect(call("POST", "/api/drafts/scan", strings.NewReader(payload), "application/json", &second)).To(Equal(http.StatusOK))
		Expect(second.Drafts).To(HaveLen(1))
		Expect(call("DELETE", "/api/drafts/"+second.Drafts[0].ID, nil, "", nil)).To(Equal(http.StatusNoContent))

		// --- Step 2: fix the price of the second item ---
		Expect(call("POST", "/api/drafts/"+draft.ID+"/edit", nil, "", nil)).To(Equal(http.StatusOK))
		Expect(call("PATCH", "/api/drafts/"+draft.ID+"/items/1", strings.NewReader(`{"price":"1,024"}`), "application/json", nil)).
			To(Equal(http.StatusOK))

		// --- Step 3: save ---
		var saved expense.Record
		Expect(call("POST", "/api/drafts/"+draft.ID+"/save", nil, "", &saved)).To(Equal(http.StatusOK))
		Expect(saved.ID).NotTo(BeEmpty())

		stored, err := db.Get(context.Background(), saved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.UID).To(Equal("hanako"))
		Expect(stored.Items[0].Price).To(Equal(238.0))
		Expect(stored.Items[1].Price).To(Equal(1024.0))

		_, err = store.Get(draft.ID + "_IMG_0420.png")
		Expect(err).To(MatchError(expense.ErrNotFound))

		// --- Step 4: dashboard ---
		var overview expense.Overview
		Expect(call("GET", "/api/dashboard?view=year&period=2024", nil, "", &overview)).To(Equal(http.StatusOK))
		Expect(overview.Summary.Count).To(Equal(1))
		Expect(overview.Summary.Months[2]).To(Equal(1280.0))

		// --- Step 5: delete ---
		Expect(call("DELETE", "/api/expenses/"+saved.ID, nil, "", nil)).To(Equal(http.StatusBadRequest))
		Expect(call("DELETE", "/api/expenses/"+saved.ID+"?confirm=true", nil, "", nil)).To(Equal(http.StatusNoContent))

		records, err := db.ListRange(context.Background(), "hanako", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("should expose metrics for the requests it served", func() {
		Expect(call("GET", "/healthz", nil, "", nil)).To(Equal(http.StatusOK))

		resp, err := http.Get(ghServer.URL() + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("kakeibo_http_request_duration_seconds"))
	})
})
