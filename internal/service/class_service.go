package service

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/models"
	"github.com/classboard/conduct-api/pkg/config"
)

// ClassService serves the static class/headteacher mapping. The data lives
// in a JSON file, not in the relational store, and can be reloaded at
// runtime.
type ClassService struct {
	cfg    config.ClassesConfig
	logger *zap.Logger

	mu      sync.RWMutex
	classes []models.ClassInfo
	byID    map[int]string
}

// NewClassService loads the class data file. A missing or broken file is
// logged and leaves the service serving fallback labels only.
func NewClassService(cfg config.ClassesConfig, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ClassService{cfg: cfg, logger: logger, byID: make(map[int]string)}
	if err := svc.Reload(); err != nil {
		logger.Warn("class data unavailable, serving fallback labels", zap.Error(err), zap.String("file", cfg.DataFile))
	}
	return svc
}

// Reload re-reads the class data file.
func (s *ClassService) Reload() error {
	raw, err := os.ReadFile(s.cfg.DataFile)
	if err != nil {
		return err
	}
	var classes []models.ClassInfo
	if err := json.Unmarshal(raw, &classes); err != nil {
		return err
	}

	byID := make(map[int]string, len(classes))
	for _, c := range classes {
		byID[c.ClassID] = c.HeadTeacher
	}

	s.mu.Lock()
	s.classes = classes
	s.byID = byID
	s.mu.Unlock()

	s.logger.Info("class data loaded", zap.Int("classes", len(classes)))
	return nil
}

// List returns all known classes.
func (s *ClassService) List() []models.ClassInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ClassInfo, len(s.classes))
	copy(out, s.classes)
	return out
}

// HeadTeacher resolves the headteacher label for a class, falling back to
// the configured format when the class is unknown.
func (s *ClassService) HeadTeacher(classID int) string {
	s.mu.RLock()
	name, ok := s.byID[classID]
	s.mu.RUnlock()
	if ok {
		return name
	}
	fallback := s.cfg.FallbackHeadLabel
	if fallback == "" {
		fallback = "{classNum}班班主任"
	}
	return strings.ReplaceAll(fallback, "{classNum}", strconv.Itoa(classID))
}
