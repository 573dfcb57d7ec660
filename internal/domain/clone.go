package domain

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func clonePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Clone returns a deep copy of d.
func (d *Driver) Clone() *Driver {
	c := *d
	c.Location = clonePosition(d.Location)
	c.Heading = cloneFloat(d.Heading)
	c.SpeedKmh = cloneFloat(d.SpeedKmh)
	c.AccuracyMeters = cloneFloat(d.AccuracyMeters)
	return &c
}

// Clone returns a deep copy of r.
func (r *Ride) Clone() *Ride {
	c := *r
	c.Destination = clonePosition(r.Destination)
	c.FareAmount = cloneFloat(r.FareAmount)
	if r.EstimatedDurationMinutes != nil {
		m := *r.EstimatedDurationMinutes
		c.EstimatedDurationMinutes = &m
	}
	return &c
}
