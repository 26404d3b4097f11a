package config

import "fmt"

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if err := c.Picker.validate(); err != nil {
		return err
	}
	if c.Backtest.Start != "" || c.Backtest.End != "" {
		if _, _, err := c.Backtest.Range(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SimulationConfig) validate() error {
	if s.CommissionRate < 0 {
		return fmt.Errorf("simulation.commission_rate 不能为负")
	}
	if s.CommissionRate >= 0.01 {
		return fmt.Errorf("simulation.commission_rate 超出合理范围: %v", s.CommissionRate)
	}
	if s.LotSize%100 != 0 {
		return fmt.Errorf("simulation.lot_size 必须是 100 的倍数")
	}
	if s.HardTakeProfit <= 0 || s.HardTakeProfit >= 1 {
		return fmt.Errorf("simulation.hard_take_profit 必须在 (0,1) 区间")
	}
	if s.HardStopLoss <= 0 || s.HardStopLoss >= 1 {
		return fmt.Errorf("simulation.hard_stop_loss 必须在 (0,1) 区间")
	}
	return nil
}

func (p *PickerConfig) validate() error {
	if p.TopN < 0 {
		return fmt.Errorf("picker.top_n 不能为负")
	}
	if p.MomentumDays < 0 {
		return fmt.Errorf("picker.momentum_days 不能为负")
	}
	return nil
}
