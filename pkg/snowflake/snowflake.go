package snowflake

import (
	"fmt"
	"sync"
	"time"
)

// Snowflake ID生成器
// 64位ID结构：1位符号位(0) + 41位时间戳 + 10位机器ID + 12位序列号
type Snowflake struct {
	mutex     sync.Mutex
	epoch     int64
	machineID int64
	sequence  int64
	lastTime  int64
	now       func() int64
}

const (
	machineBits  = 10
	sequenceBits = 12

	maxMachineID = (1 << machineBits) - 1
	maxSequence  = (1 << sequenceBits) - 1

	machineShift   = sequenceBits
	timestampShift = sequenceBits + machineBits

	// 2024-01-01 00:00:00 UTC
	defaultEpoch = 1704067200000
)

// NewSnowflake 创建Snowflake实例
func NewSnowflake(machineID int64) (*Snowflake, error) {
	if machineID < 0 || machineID > maxMachineID {
		return nil, fmt.Errorf("machine id must be within 0-%d", maxMachineID)
	}

	return &Snowflake{
		epoch:     defaultEpoch,
		machineID: machineID,
		now:       func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Generate 生成下一个ID
func (s *Snowflake) Generate() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if now < s.lastTime {
		// 时钟回拨时沿用上次时间戳，保证单调
		now = s.lastTime
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.lastTime {
				now = s.now()
				if now < s.lastTime {
					now = s.lastTime
				}
				if now == s.lastTime {
					time.Sleep(100 * time.Microsecond)
				}
			}
		}
	} else {
		s.sequence = 0
	}

	s.lastTime = now

	return ((now - s.epoch) << timestampShift) |
		(s.machineID << machineShift) |
		s.sequence
}

// NextID 实现ID生成接口
func (s *Snowflake) NextID() int64 {
	return s.Generate()
}

// ParseID 解析Snowflake ID
func (s *Snowflake) ParseID(id int64) (timestamp int64, machineID int64, sequence int64) {
	timestamp = (id >> timestampShift) + s.epoch
	machineID = (id >> machineShift) & maxMachineID
	sequence = id & maxSequence
	return
}

// Time 返回ID中编码的生成时间
func (s *Snowflake) Time(id int64) time.Time {
	timestamp, _, _ := s.ParseID(id)
	return time.UnixMilli(timestamp).UTC()
}
