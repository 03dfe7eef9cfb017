package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/handler/dto"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
	"github.com/yourusername/quiznight-api/internal/service"
)

// SessionHandler обрабатывает запросы, связанные с сессиями и наборами вопросов
type SessionHandler struct {
	sessionEngine      *service.SessionEngine
	questionSetService *service.QuestionSetService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(
	sessionEngine *service.SessionEngine,
	questionSetService *service.QuestionSetService,
) *SessionHandler {
	return &SessionHandler{
		sessionEngine:      sessionEngine,
		questionSetService: questionSetService,
	}
}

// CreateQuestionSetRequest представляет запрос на создание набора вопросов
type CreateQuestionSetRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Questions   []struct {
		Text          string   `json:"text" binding:"required,min=3,max=500"`
		Options       []string `json:"options" binding:"required,min=2,max=5"`
		CorrectOption int      `json:"correct_option" binding:"min=0"`
		TimeLimitSec  int      `json:"time_limit_sec,omitempty"` // По умолчанию 30 сек
		PointValue    int      `json:"point_value,omitempty"`    // По умолчанию 1
	} `json:"questions" binding:"required,min=1"`
}

// CreateQuestionSet обрабатывает запрос на создание набора вопросов
func (h *SessionHandler) CreateQuestionSet(c *gin.Context) {
	var req CreateQuestionSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Преобразуем данные в формат для сервиса
	questions := make([]entity.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("invalid correct_option index %d for question #%d", q.CorrectOption, i+1),
			})
			return
		}

		// Дефолтные значения
		timeLimitSec := q.TimeLimitSec
		if timeLimitSec == 0 {
			timeLimitSec = 30
		}
		pointValue := q.PointValue
		if pointValue == 0 {
			pointValue = 1
		}

		questions = append(questions, entity.Question{
			Text:          q.Text,
			Options:       entity.StringArray(q.Options),
			CorrectOption: q.CorrectOption,
			TimeLimitSec:  timeLimitSec,
			PointValue:    pointValue,
		})
	}

	set, err := h.questionSetService.CreateQuestionSet(req.Title, req.Description, questions)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuestionSetResponse(set, true))
}

// GetQuestionSet возвращает набор вопросов вместе с вопросами
func (h *SessionHandler) GetQuestionSet(c *gin.Context) {
	setID := c.MustGet("setID").(uint) // Получаем из контекста

	set, err := h.questionSetService.GetQuestionSet(setID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuestionSetResponse(set, true))
}

// ListQuestionSets возвращает список наборов вопросов с пагинацией
func (h *SessionHandler) ListQuestionSets(c *gin.Context) {
	pageStr := c.DefaultQuery("page", "1")
	pageSizeStr := c.DefaultQuery("page_size", "10")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(pageSizeStr)
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	sets, total, err := h.questionSetService.ListQuestionSets(page, pageSize)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_sets": dto.NewListQuestionSetResponse(sets),
		"total":         total,
		"page":          page,
		"size":          pageSize,
	})
}

// DeleteQuestionSet удаляет набор вопросов
func (h *SessionHandler) DeleteQuestionSet(c *gin.Context) {
	setID := c.MustGet("setID").(uint) // Получаем из контекста

	if err := h.questionSetService.DeleteQuestionSet(setID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question set deleted successfully"})
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	QuestionSetID uint   `json:"question_set_id" binding:"required"`
	MasterID      string `json:"master_id" binding:"required,min=1,max=64"`
}

// CreateSession обрабатывает запрос на создание сессии в лобби
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionEngine.CreateSession(req.MasterID, req.QuestionSetID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSessionResponse(session))
}

// GetSession возвращает публичный снимок состояния сессии
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session ID"})
		return
	}

	snapshot, err := h.sessionEngine.Snapshot(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetSessionResults возвращает сохранённые итоги завершённой сессии
func (h *SessionHandler) GetSessionResults(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session ID"})
		return
	}

	session, results, err := h.sessionEngine.SessionResults(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if !session.IsFinished() {
		h.handleSessionError(c, apperrors.ErrInvalidState)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": dto.NewSessionResponse(session),
		"results": dto.NewListSessionResultResponse(results),
		"total":   len(results),
	})
}

// ExportSessionResults экспортирует итоги сессии в CSV или Excel формате
// GET /api/sessions/:id/results/export?format=csv|xlsx
func (h *SessionHandler) ExportSessionResults(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session ID"})
		return
	}
	format := c.DefaultQuery("format", "csv")

	session, results, err := h.sessionEngine.SessionResults(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if !session.IsFinished() {
		h.handleSessionError(c, apperrors.ErrInvalidState)
		return
	}

	filename := fmt.Sprintf("session_%s_results_%s", sessionID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, results, filename)
	default:
		h.exportCSV(c, results, filename)
	}
}

// exportCSV экспортирует итоги в CSV с правильным экранированием спецсимволов
func (h *SessionHandler) exportCSV(c *gin.Context, results []entity.SessionResult, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// Заголовки
	writer.Write([]string{"Место", "Участник", "Команда", "Очки", "Правильных", "Всего вопросов"})

	// Данные
	for _, r := range results {
		writer.Write([]string{
			strconv.Itoa(r.Rank),
			sanitizeForExcel(r.DisplayName),
			sanitizeForExcel(r.TeamName),
			strconv.Itoa(r.Score),
			strconv.Itoa(r.CorrectAnswers),
			strconv.Itoa(r.TotalQuestions),
		})
	}
}

// exportXLSX экспортирует итоги в Excel с использованием StreamWriter
func (h *SessionHandler) exportXLSX(c *gin.Context, results []entity.SessionResult, filename string) {
	// Используем StreamWriter для эффективной работы с большими файлами
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	// Заголовки
	headers := []interface{}{"Место", "Участник", "Команда", "Очки", "Правильных", "Всего вопросов"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i, r := range results {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{r.Rank, sanitizeForExcel(r.DisplayName), sanitizeForExcel(r.TeamName), r.Score, r.CorrectAnswers, r.TotalQuestions}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка при Flush: %v", err)
	}

	// Записываем в response
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// handleSessionError обрабатывает ошибки сервисов и отправляет соответствующий HTTP ответ
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrInvalidOption) || errors.Is(err, apperrors.ErrInvalidName) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
