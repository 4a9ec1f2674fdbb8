package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
)

// ── 院系模块业务错误 ──

var (
	ErrDepartmentExists = errors.New("院系名称或代码已存在")
)

// DepartmentService 院系业务接口
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DepartmentResponse, error)
	List(ctx context.Context) ([]dto.DepartmentResponse, error)
}

type departmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentResponse, error) {
	code := strings.ToUpper(req.Code)
	existing, err := s.repo.Department.GetByCode(ctx, code)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询院系失败", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return nil, ErrDepartmentExists
	}

	dept := &model.Department{
		Name:        req.Name,
		Code:        code,
		Description: req.Description,
	}
	dept.CreatedBy = &callerID
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		// 名称唯一约束
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDepartmentExists
		}
		s.logger.Error("创建院系失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("院系已创建", zap.String("code", dept.Code), zap.String("operator", callerID))
	resp := toDepartmentResponse(dept)
	return &resp, nil
}

// ────────────────────── Query ──────────────────────

func (s *departmentService) GetByID(ctx context.Context, id string) (*dto.DepartmentResponse, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询院系失败", zap.Error(err))
		return nil, err
	}
	resp := toDepartmentResponse(dept)
	return &resp, nil
}

func (s *departmentService) List(ctx context.Context) ([]dto.DepartmentResponse, error) {
	depts, err := s.repo.Department.List(ctx)
	if err != nil {
		s.logger.Error("查询院系列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		out = append(out, toDepartmentResponse(&depts[i]))
	}
	return out, nil
}

func toDepartmentResponse(d *model.Department) dto.DepartmentResponse {
	return dto.DepartmentResponse{ID: d.DepartmentID, Name: d.Name, Code: d.Code}
}
