package http

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"iotdetect/detection"
	"iotdetect/flow"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "web/templates/*.html"))

const (
	pageHome      = "Homepage"
	pageDetection = "Detection"

	defaultImageURL = "/static/iot_devices.svg"
	customImageURL  = "/media/homepage-image"
)

var (
	uiTitle   = "IoT Cyberattack Detection"
	imagePath string
)

// SetUIConfig 设置页面标题和首页图片（空路径使用内置图片）
func SetUIConfig(title, image string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if title != "" {
		uiTitle = title
	}
	imagePath = image
}

// RegisterPageHandlers 注册页面和静态资源
func RegisterPageHandlers(mux *http.ServeMux) {
	static, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /media/homepage-image", handleHomepageImage)

	mux.HandleFunc("GET /{$}", handleHomepage)
	mux.HandleFunc("GET /detection", handleDetectionPage)
	mux.HandleFunc("POST /detection", handleDetectionSubmit)
}

// formField is one number input or selector on the detection page.
type formField struct {
	Name    string
	Label   string
	Value   string
	Integer bool
	Options []string
}

type pageData struct {
	Title    string
	Page     string
	Pages    []string
	ImageURL string
	Models   []modelStatus

	Columns        [][]formField
	Submitted      []submittedValue
	Error          string
	Banner         string
	AttackDetected bool
	Classification string
}

// modelStatus is a loaded artifact as shown in the sidebar.
type modelStatus struct {
	Name    string
	Version string
	Loaded  string
}

type submittedValue struct {
	Name  string
	Value string
}

func newPageData(page string) pageData {
	stateMu.RLock()
	defer stateMu.RUnlock()
	data := pageData{
		Title:    uiTitle,
		Page:     page,
		Pages:    []string{pageHome, pageDetection},
		ImageURL: defaultImageURL,
	}
	if imagePath != "" {
		data.ImageURL = customImageURL
	}
	if pipeline != nil {
		for _, info := range pipeline.Models() {
			status := modelStatus{Name: info.Name, Version: info.Version}
			if !info.LoadedAt.IsZero() {
				status.Loaded = humanize.Time(info.LoadedAt)
			}
			data.Models = append(data.Models, status)
		}
	}
	return data
}

func handleHomepage(w http.ResponseWriter, r *http.Request) {
	// 侧边栏选择器在没有脚本时以 ?page= 提交
	if strings.EqualFold(r.URL.Query().Get("page"), pageDetection) {
		http.Redirect(w, r, "/detection", http.StatusSeeOther)
		return
	}
	renderPage(w, "home.html", newPageData(pageHome))
}

func handleHomepageImage(w http.ResponseWriter, r *http.Request) {
	stateMu.RLock()
	path := imagePath
	stateMu.RUnlock()
	if path == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(path); err != nil {
		serverLogger().Warn("homepage image unavailable", zap.String("path", path), zap.Error(err))
		http.Redirect(w, r, defaultImageURL, http.StatusFound)
		return
	}
	http.ServeFile(w, r, path)
}

func handleDetectionPage(w http.ResponseWriter, r *http.Request) {
	data := newPageData(pageDetection)
	data.Columns = formColumns(flow.DefaultInput())
	renderPage(w, "detection.html", data)
}

func handleDetectionSubmit(w http.ResponseWriter, r *http.Request) {
	data := newPageData(pageDetection)
	if err := r.ParseForm(); err != nil {
		data.Columns = formColumns(flow.DefaultInput())
		data.Error = "could not read the submitted form"
		renderPageStatus(w, http.StatusBadRequest, "detection.html", data)
		return
	}

	in, err := flow.ParseInput(r.PostForm)
	data.Columns = formColumns(in)
	if err != nil {
		data.Error = err.Error()
		renderPageStatus(w, statusFor(err), "detection.html", data)
		return
	}
	f, err := in.Features()
	if err != nil {
		data.Error = err.Error()
		renderPageStatus(w, statusFor(err), "detection.html", data)
		return
	}

	p := currentPipeline()
	if p == nil {
		data.Error = "models are not loaded"
		renderPageStatus(w, http.StatusServiceUnavailable, "detection.html", data)
		return
	}

	v := flow.BuildVector(f)
	var result detection.Result
	switch r.PostForm.Get("action") {
	case "", detection.StageDetect:
		result, err = p.Detect(r.Context(), v)
	case detection.StageClassify:
		result, err = p.Classify(r.Context(), v)
	default:
		data.Error = "unknown action " + r.PostForm.Get("action")
		renderPageStatus(w, http.StatusBadRequest, "detection.html", data)
		return
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			serverLogger().Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
			data.Error = "prediction failed"
		} else {
			data.Error = err.Error()
		}
		renderPageStatus(w, status, "detection.html", data)
		return
	}

	data.Banner = result.Banner
	data.AttackDetected = result.AttackDetected
	if result.Classified {
		data.Classification = result.Label
	}
	data.Submitted = submittedValues(v)
	renderPage(w, "detection.html", data)
}

func formColumns(in flow.Input) [][]formField {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	whole := strconv.Itoa
	return [][]formField{
		{
			{Name: "flow_duration", Label: "Flow Duration", Value: num(in.FlowDuration)},
			{Name: "header_length", Label: "Header Length", Value: num(in.HeaderLength)},
			{Name: "protocol_type", Label: "Protocol Number", Value: whole(in.ProtocolType), Integer: true},
			{Name: "rate", Label: "Flow Rate", Value: num(in.Rate)},
		},
		{
			{Name: "psh_flag", Label: "Is the PSH flag set?", Value: in.PSHFlag, Options: flow.YesNo.Keys()},
			{Name: "ack_count", Label: "ACK Count", Value: whole(in.ACKCount), Integer: true},
			{Name: "syn_count", Label: "SYN Count", Value: whole(in.SYNCount), Integer: true},
			{Name: "fin_count", Label: "FIN Count", Value: whole(in.FINCount), Integer: true},
		},
		{
			{Name: "urg_count", Label: "URG Count", Value: whole(in.URGCount), Integer: true},
			{Name: "rst_count", Label: "RST Count", Value: whole(in.RSTCount), Integer: true},
			{Name: "tot_size", Label: "Total Size of Packets", Value: num(in.TotalSize)},
			{Name: "iat", Label: "Inter-Arrival Time between Packets", Value: num(in.IAT)},
		},
	}
}

// submittedValues renders the vector the models saw, with digit grouping.
func submittedValues(v flow.Vector) []submittedValue {
	p := message.NewPrinter(language.English)
	names := flow.FeatureNames()
	values := make([]submittedValue, len(names))
	for i, name := range names {
		values[i] = submittedValue{
			Name:  name,
			Value: p.Sprint(number.Decimal(v[i], number.MaxFractionDigits(6))),
		}
	}
	return values
}

func renderPage(w http.ResponseWriter, name string, data pageData) {
	renderPageStatus(w, http.StatusOK, name, data)
}

func renderPageStatus(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		serverLogger().Error("template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
