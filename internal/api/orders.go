package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sales-order-service/internal/service"
	"sales-order-service/internal/sheet"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxUploadBytes    = 10 << 20
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	idempotencyHeader = "Idempotency-Key"
)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid order ID", nil)
		return 0, false
	}
	return id, true
}

// formPayload rebuilds a JSON document from multipart fields. An "order"
// field carries the whole document; otherwise each field is one value and
// JSON arrays or objects (products) are kept as is.
func formPayload(form *multipart.Form) ([]byte, error) {
	if doc, ok := form.Value["order"]; ok && len(doc) > 0 {
		return []byte(doc[0]), nil
	}
	fields := make(map[string]json.RawMessage, len(form.Value))
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		raw := strings.TrimSpace(values[0])
		if (strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{")) && json.Valid([]byte(raw)) {
			fields[key] = json.RawMessage(raw)
			continue
		}
		quoted, err := json.Marshal(values[0])
		if err != nil {
			return nil, err
		}
		fields[key] = quoted
	}
	return json.Marshal(fields)
}

// savePOFile stores the purchase order attachment and returns its public path
func (h *Handler) savePOFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	name := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(h.opts.UploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}
	return "/Uploads/" + name, nil
}

// discardPOFile removes an attachment saved for a request that did not create an order
func (h *Handler) discardPOFile(poFilePath string) {
	if poFilePath == "" {
		return
	}
	name := filepath.Base(strings.TrimPrefix(poFilePath, "/Uploads/"))
	if err := os.Remove(filepath.Join(h.opts.UploadDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("Failed to remove orphaned attachment", zap.String("file", name), zap.Error(err))
	}
}

// listOrders handles GET /orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, orders)
}

// createOrder handles order creation from JSON or multipart bodies
func (h *Handler) createOrder(c *gin.Context) {
	var payload []byte
	var poFilePath string

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid multipart body", err.Error())
			return
		}
		if payload, err = formPayload(form); err != nil {
			fail(c, http.StatusBadRequest, "Invalid multipart body", err.Error())
			return
		}
		if files := form.File["poFile"]; len(files) > 0 {
			if poFilePath, err = h.savePOFile(c, files[0]); err != nil {
				respondError(c, err)
				return
			}
		}
	} else {
		var err error
		if payload, err = c.GetRawData(); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	var in service.OrderInput
	if err := json.Unmarshal(payload, &in); err != nil {
		h.discardPOFile(poFilePath)
		fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), actorFrom(c), &in, poFilePath, c.GetHeader(idempotencyHeader))
	if err != nil {
		h.discardPOFile(poFilePath)
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

// editOrder handles partial updates
func (h *Handler) editOrder(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	order, err := h.orders.EditOrder(c.Request.Context(), actorFrom(c), id, body)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

// deleteOrder handles DELETE /orders/:id
func (h *Handler) deleteOrder(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handler) stageOrders(stage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.orders.StageOrders(c.Request.Context(), actorFrom(c), stage)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, orders)
	}
}

// exportOrders streams the scoped orders as a workbook
func (h *Handler) exportOrders(c *gin.Context) {
	export, err := h.orders.ExportOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Content)
}

// bulkOrders imports a spreadsheet upload or a JSON array of orders
func (h *Handler) bulkOrders(c *gin.Context) {
	var rows []service.BulkRow

	if isMultipart(c) {
		file, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "No file uploaded", nil)
			return
		}
		if file.Size > maxUploadBytes {
			fail(c, http.StatusBadRequest, "File too large", nil)
			return
		}
		f, err := file.Open()
		if err != nil {
			respondError(c, fmt.Errorf("failed to open upload: %w", err))
			return
		}
		defer f.Close()

		sheetRows, err := sheet.ReadRows(f)
		if err != nil {
			h.logger.Warn("Unreadable bulk upload", zap.String("file", file.Filename), zap.Error(err))
			if errors.Is(err, sheet.ErrNoSheets) {
				fail(c, http.StatusBadRequest, "Spreadsheet has no sheets", nil)
				return
			}
			fail(c, http.StatusBadRequest, "Invalid spreadsheet", err.Error())
			return
		}
		if rows, err = service.RowsFromSheet(sheetRows); err != nil {
			respondError(c, err)
			return
		}
	} else {
		var inputs []service.OrderInput
		raw, err := c.GetRawData()
		if err == nil {
			err = json.Unmarshal(raw, &inputs)
		}
		if err != nil {
			fail(c, http.StatusBadRequest, "Expected a JSON array of orders", err.Error())
			return
		}
		rows = service.RowsFromJSON(inputs)
	}

	orders, err := h.orders.ImportOrders(c.Request.Context(), actorFrom(c), rows, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"count": len(orders), "orders": orders})
}
