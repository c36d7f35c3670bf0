package expense

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(parts ...filePart) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		w, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write(p.data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/scan", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/drafts/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

var _ = Describe("readUploads", func() {
	var (
		req     *http.Request
		uploads []Upload
		err     error
	)

	JustBeforeEach(func() {
		uploads, err = readUploads(httptest.NewRecorder(), req)
	})

	When("the body is a multipart form", func() {
		BeforeEach(func() {
			req = multipartRequest(
				filePart{name: "a.jpg", contentType: "image/jpeg", data: []byte("jpeg")},
				filePart{name: "b.heic", data: []byte("heic")},
			)
		})

		It("should return every file part in order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(uploads).To(HaveLen(2))
			Expect(uploads[0].Filename).To(Equal("a.jpg"))
			Expect(string(uploads[0].Data)).To(Equal("jpeg"))
		})

		It("should fall back to the extension for the MIME type", func() {
			Expect(uploads[0].ContentType).To(Equal("image/jpeg"))
			Expect(uploads[1].ContentType).To(Equal("image/heic"))
		})
	})

	When("the body is JSON with base64 images", func() {
		BeforeEach(func() {
			encoded := base64.StdEncoding.EncodeToString([]byte("png"))
			req = jsonRequest(`{"images":[
				{"filename":"a.png","mimeType":"image/png","data":"` + encoded + `"},
				{"filename":"b","data":"data:image/webp;base64,` + encoded + `"}
			]}`)
		})

		It("should decode the images", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(uploads).To(HaveLen(2))
			Expect(string(uploads[0].Data)).To(Equal("png"))
			Expect(uploads[0].ContentType).To(Equal("image/png"))
		})

		It("should take the MIME type from a data URL", func() {
			Expect(string(uploads[1].Data)).To(Equal("png"))
			Expect(uploads[1].ContentType).To(Equal("image/webp"))
		})
	})

	When("the JSON payload is not base64", func() {
		BeforeEach(func() {
			req = jsonRequest(`{"images":[{"filename":"a.png","data":"***"}]}`)
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ErrValidation))
		})
	})

	When("no images are sent", func() {
		BeforeEach(func() {
			req = jsonRequest(`{"images":[]}`)
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ErrValidation))
		})
	})

	When("the content type is something else", func() {
		BeforeEach(func() {
			req = httptest.NewRequest(http.MethodPost, "/api/drafts/scan", bytes.NewBufferString("hello"))
			req.Header.Set("Content-Type", "text/plain")
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ErrValidation))
		})
	})
})

var _ = Describe("Upload.Validate", func() {
	It("should accept images and PDFs", func() {
		Expect(Upload{ContentType: "image/heic", Data: []byte("x")}.Validate()).To(Succeed())
		Expect(Upload{ContentType: "application/pdf", Data: []byte("x")}.Validate()).To(Succeed())
	})

	It("should reject empty files", func() {
		Expect(Upload{ContentType: "image/png"}.Validate()).To(MatchError(ErrValidation))
	})

	It("should reject unsupported types", func() {
		Expect(Upload{ContentType: "text/plain", Data: []byte("x")}.Validate()).To(MatchError(ErrValidation))
	})

	It("should reject files over the size limit", func() {
		big := Upload{ContentType: "image/png", Data: make([]byte, maxUploadSize+1)}
		Expect(big.Validate()).To(MatchError(ErrValidation))
	})
})
