package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"subpool/internal/shared/logger"
	"subpool/nodepool/model"
)

// Storage 接口定义了节点数据持久化的行为。
type Storage interface {
	Load() (map[string]*model.NodeInfo, error)
	Save(nodes map[string]*model.NodeInfo) error
}

// FileStorage 实现了 Storage 接口，使用 JSON 文件进行持久化。
// 节点记录带开放的属性表，固定分隔符的行格式放不下，用 JSON。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{filePath: filePath}
}

// Load 从文件加载节点数据到内存 map 中。
func (fs *FileStorage) Load() (map[string]*model.NodeInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("NodePool/Storage")

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Node data file not found, starting with an empty pool.")
			return make(map[string]*model.NodeInfo), nil
		}
		return nil, err
	}

	var nodes []*model.NodeInfo
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node data file: %w", err)
	}

	nodeMap := make(map[string]*model.NodeInfo, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			l.Warn().Msg("Skipping node entry without an ID in data file.")
			continue
		}
		nodeMap[n.ID] = n
	}

	l.Info().Int("count", len(nodeMap)).Msg("Successfully loaded nodes from file.")
	return nodeMap, nil
}

// Save 将内存中的节点 map 持久化到文件。
func (fs *FileStorage) Save(nodes map[string]*model.NodeInfo) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("NodePool/Storage")

	// 转换为按 ID 排序的 slice，保证文件内容稳定。
	nodeList := make([]*model.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool {
		return nodeList[i].ID < nodeList[j].ID
	})

	data, err := json.MarshalIndent(nodeList, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}
	if err := os.WriteFile(fs.filePath, data, 0644); err != nil {
		return err
	}

	l.Info().Int("count", len(nodeList)).Msg("Successfully saved nodes to file.")
	return nil
}
