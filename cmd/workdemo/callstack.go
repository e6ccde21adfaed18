// Package workdemo is a CPU bound workload with a plain call chain and a
// pair of mutually recursive functions, so its profile has a cycle.
package workdemo

var workAmount = 20000000

func Root(depth int) int {
	count := CallStackOne(1)
	return Ping(count, depth)
}

func CallStackOne(count int) int {
	count = spin(count)
	return CallStackTwo(count)
}

func CallStackTwo(count int) int {
	count = spin(count)
	return CallStackThree(count)
}

func CallStackThree(count int) int {
	return spin(count)
}

// Ping and Pong call each other until depth runs out.
func Ping(count, depth int) int {
	count = spin(count)
	if depth <= 0 {
		return count
	}
	return Pong(count, depth-1)
}

func Pong(count, depth int) int {
	count = spin(count / 2)
	if depth <= 0 {
		return count
	}
	return Ping(count, depth-1)
}

func spin(count int) int {
	for i := 0; i < workAmount; i++ {
		count += i
		if i%2 == 0 {
			count = count / 2
		}
	}
	return count
}
