package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

const (
	routePrefix  = "/api/v1"
	healthPath   = routePrefix + "/health"
	productPath  = routePrefix + "/producto/"
	searchPath   = routePrefix + "/buscar"
	cacheControl = "public, max-age=300, must-revalidate"
)

// Handler serves the product API behind API Gateway.
type Handler struct {
	svc    *Service
	apiKey string
	logger *zap.Logger
}

// NewHandler builds a Handler. Every route except health requires
// "Authorization: Bearer <apiKey>".
func NewHandler(svc *Service, apiKey string, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, apiKey: apiKey, logger: logger}
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"mensaje,omitempty"`
	ProductID string `json:"id_producto,omitempty"`
}

type searchResult struct {
	ProductCode   string  `json:"id_producto"`
	Name          string  `json:"nombre_producto"`
	Brand         string  `json:"marca_producto"`
	MinPrice      *string `json:"precio_minimo"`
	MaxPrice      *string `json:"precio_maximo"`
	MerchantCount int     `json:"cantidad_comercios"`
}

type searchBody struct {
	Term    string         `json:"termino"`
	Results []searchResult `json:"resultados"`
}

// Handle routes one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimSuffix(req.Path, "/")
	h.logger.Debug("received request", zap.String("method", req.HTTPMethod), zap.String("path", path))

	if req.HTTPMethod == http.MethodOptions {
		return respond(http.StatusNoContent, nil), nil
	}
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodGet {
		return respond(http.StatusMethodNotAllowed, errorBody{Error: "Método no permitido"}), nil
	}

	if path == healthPath {
		return respond(http.StatusOK, map[string]string{"status": "ok"}), nil
	}

	if resp, ok := h.authorize(req); !ok {
		return resp, nil
	}

	switch {
	case strings.HasPrefix(path, productPath):
		code := strings.TrimPrefix(path, productPath)
		if c, ok := req.PathParameters["codigo"]; ok && c != "" {
			code = c
		}
		return h.product(ctx, strings.TrimSpace(code)), nil
	case path == searchPath:
		return h.search(ctx, req.QueryStringParameters), nil
	default:
		return respond(http.StatusNotFound, errorBody{Error: "Ruta no encontrada"}), nil
	}
}

func (h *Handler) authorize(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, bool) {
	auth := header(req, "Authorization")
	if auth == "" {
		return respond(http.StatusUnauthorized, errorBody{
			Error:   "No se proporcionó token de autenticación",
			Message: "Se requiere header Authorization con Bearer token",
		}), false
	}

	// An empty Bearer token is just a wrong key.
	token := auth
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		token = strings.TrimSpace(rest)
	}

	if h.apiKey == "" || token != h.apiKey {
		return respond(http.StatusForbidden, errorBody{
			Error:   "Token inválido",
			Message: "La API key proporcionada no es válida",
		}), false
	}
	return events.APIGatewayProxyResponse{}, true
}

func (h *Handler) product(ctx context.Context, code string) events.APIGatewayProxyResponse {
	if code == "" {
		return respond(http.StatusBadRequest, errorBody{Error: "Código de producto requerido"})
	}

	resp, err := h.svc.Product(ctx, code)
	switch {
	case err == nil:
		return respond(http.StatusOK, resp)
	case errors.Is(err, ErrNotFound):
		return respond(http.StatusNotFound, errorBody{Error: "Producto no encontrado", ProductID: code})
	default:
		return h.failure(err, "Error al buscar producto", zap.String("code", code))
	}
}

func (h *Handler) search(ctx context.Context, params map[string]string) events.APIGatewayProxyResponse {
	term := strings.TrimSpace(params["q"])
	if term == "" {
		return respond(http.StatusBadRequest, errorBody{Error: "Parámetro q requerido"})
	}
	limit := DefaultSearchLimit
	if raw := params["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return respond(http.StatusBadRequest, errorBody{Error: "Parámetro limit inválido"})
		}
		limit = n
	}

	summaries, err := h.svc.Search(ctx, term, limit)
	if err != nil {
		return h.failure(err, "Error al buscar productos", zap.String("term", term))
	}

	body := searchBody{Term: term, Results: make([]searchResult, 0, len(summaries))}
	for _, s := range summaries {
		body.Results = append(body.Results, toSearchResult(s))
	}
	return respond(http.StatusOK, body)
}

func (h *Handler) failure(err error, msg string, fields ...zap.Field) events.APIGatewayProxyResponse {
	if errors.Is(err, ErrNotReady) {
		return respond(http.StatusServiceUnavailable, errorBody{
			Error:   "Servicio no disponible",
			Message: "Importación de datos en curso",
		})
	}
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	return respond(http.StatusInternalServerError, errorBody{Error: msg})
}

func toSearchResult(s models.ProductSummary) searchResult {
	r := searchResult{
		ProductCode:   s.ProductCode,
		Name:          s.Description,
		Brand:         s.Brand.String,
		MerchantCount: s.MerchantCount,
	}
	if s.MinPrice.Valid {
		p := FormatPrice(s.MinPrice.Float64)
		r.MinPrice = &p
	}
	if s.MaxPrice.Valid {
		p := FormatPrice(s.MaxPrice.Float64)
		r.MaxPrice = &p
	}
	return r
}

// header does a case-insensitive lookup; API Gateway preserves client casing.
func header(req events.APIGatewayProxyRequest, name string) string {
	if v, ok := req.Headers[name]; ok {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func respond(status int, body interface{}) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
	}
	if status == http.StatusOK {
		headers["Cache-Control"] = cacheControl
	}
	if body == nil {
		return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"error": "Failed to format response"}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(payload)}
}
