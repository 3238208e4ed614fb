package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"gte=0"`
	Stock       int             `json:"stock" binding:"gte=0"`
}

type updateProductRequest struct {
	Rev         string           `json:"_rev"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

type productResponse struct {
	ID          string          `json:"_id"`
	Rev         string          `json:"_rev"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// newProductResponse omite os bytes da imagem, servidos em /api/products/:id/image
func newProductResponse(p *Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Rev:         p.Rev,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Image != nil {
		resp.ImageURL = "/api/products/" + p.ID + "/image"
	}
	return resp
}

type createCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readImage lê o arquivo "image" do formulário, limitado a maxImageBytes.
// Sem arquivo, retorna nil.
func (h *Handler) readImage(c *gin.Context) (*ProductImage, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, validationError("invalid image upload: " + err.Error())
	}
	if header.Size > h.maxImageBytes {
		return nil, validationError(fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}
	if int64(len(data)) > h.maxImageBytes {
		return nil, validationError(fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes))
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, validationError("uploaded file is not an image")
	}
	return &ProductImage{Data: data, ContentType: contentType}, nil
}

// formDecimal e formInt retornam nil quando o campo não foi enviado
func formDecimal(c *gin.Context, field string) (*decimal.Decimal, error) {
	value, ok := c.GetPostForm(field)
	if !ok {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, validationError(field + " must be a decimal number")
	}
	return &d, nil
}

func formInt(c *gin.Context, field string) (*int, error) {
	value, ok := c.GetPostForm(field)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil, validationError(field + " must be an integer")
	}
	return &n, nil
}

func formString(c *gin.Context, field string) *string {
	value, ok := c.GetPostForm(field)
	if !ok {
		return nil
	}
	return &value
}

// parseProductForm lê os campos de produto de um multipart/form-data
func (h *Handler) parseProductForm(c *gin.Context) (ProductUpdate, error) {
	var upd ProductUpdate
	var err error
	upd.Rev = c.PostForm("_rev")
	upd.Name = formString(c, "name")
	upd.Description = formString(c, "description")
	if upd.Price, err = formDecimal(c, "price"); err != nil {
		return upd, err
	}
	if upd.Stock, err = formInt(c, "stock"); err != nil {
		return upd, err
	}
	if upd.Image, err = h.readImage(c); err != nil {
		return upd, err
	}
	return upd, nil
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) GetProductImage(c *gin.Context) {
	image, err := h.products.Image(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, image.ContentType, image.Data)
}

// CreateProduct aceita JSON ou multipart/form-data com o arquivo "image"
func (h *Handler) CreateProduct(c *gin.Context) {
	var in ProductInput
	if isMultipart(c) {
		upd, err := h.parseProductForm(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if upd.Name == nil {
			respondError(c, validationError("product name is required"))
			return
		}
		in.Name = *upd.Name
		if upd.Description != nil {
			in.Description = *upd.Description
		}
		if upd.Price != nil {
			in.Price = *upd.Price
		}
		if upd.Stock != nil {
			in.Stock = *upd.Stock
		}
		in.Image = upd.Image
	} else {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		in = ProductInput{Name: req.Name, Description: req.Description, Price: req.Price, Stock: req.Stock}
	}

	product, err := h.products.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductResponse(product))
}

// UpdateProduct aplica uma alteração parcial. A revisão pode vir no corpo (_rev) ou em If-Match.
func (h *Handler) UpdateProduct(c *gin.Context) {
	var upd ProductUpdate
	if isMultipart(c) {
		var err error
		if upd, err = h.parseProductForm(c); err != nil {
			respondError(c, err)
			return
		}
	} else {
		var req updateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		upd = ProductUpdate{
			Rev:         req.Rev,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		}
	}
	if upd.Rev == "" {
		upd.Rev = strings.Trim(c.GetHeader("If-Match"), `"`)
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	rev := c.Query("rev")
	if rev == "" {
		rev = strings.Trim(c.GetHeader("If-Match"), `"`)
	}
	if err := h.products.Delete(c.Request.Context(), c.Param("id"), rev); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

func (h *Handler) ProductsReportPDF(c *gin.Context) {
	products, err := h.reports.Products(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := RenderProductsPDF(products, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "products-report.pdf", pdfContentType, data)
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.customers.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	customer, err := h.customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}
